package dap

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	godap "github.com/google/go-dap"
)

func TestWriteMessage(t *testing.T) {
	var buf bytes.Buffer
	msg := &godap.ConfigurationDoneRequest{}
	msg.Seq = 3
	msg.Type = "request"
	msg.Command = "configurationDone"

	if err := writeMessage(&buf, msg); err != nil {
		t.Fatalf("write message: %v", err)
	}

	result := buf.String()
	if !strings.HasPrefix(result, "Content-Length: ") {
		t.Errorf("unexpected header: %q", result)
	}
	if !strings.Contains(result, "\r\n\r\n") {
		t.Errorf("missing header terminator: %q", result)
	}
	if !strings.Contains(result, `"command":"configurationDone"`) {
		t.Errorf("unexpected content: %q", result)
	}
}

func TestReadMessage(t *testing.T) {
	body := `{"seq":1,"type":"event","event":"stopped","body":{"reason":"breakpoint","threadId":7}}`
	input := "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	msg, err := readMessage(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	stopped, ok := msg.(*godap.StoppedEvent)
	if !ok {
		t.Fatalf("expected *StoppedEvent, got %T", msg)
	}
	if stopped.Body.Reason != "breakpoint" {
		t.Errorf("expected reason 'breakpoint', got %q", stopped.Body.Reason)
	}
	if stopped.Body.ThreadId != 7 {
		t.Errorf("expected thread 7, got %d", stopped.Body.ThreadId)
	}
}

func TestReadMessageUnsupportedEvent(t *testing.T) {
	unknown := `{"seq":1,"type":"event","event":"somethingNew","body":{}}`
	known := `{"seq":2,"type":"event","event":"initialized"}`
	input := "Content-Length: " + strconv.Itoa(len(unknown)) + "\r\n\r\n" + unknown +
		"Content-Length: " + strconv.Itoa(len(known)) + "\r\n\r\n" + known

	reader := bufio.NewReader(strings.NewReader(input))

	_, err := readMessage(reader)
	var unsupported *UnsupportedMessageError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedMessageError, got %v", err)
	}

	// The stream stays usable after an unknown message.
	msg, err := readMessage(reader)
	if err != nil {
		t.Fatalf("read after unsupported: %v", err)
	}
	if _, ok := msg.(*godap.InitializedEvent); !ok {
		t.Errorf("expected *InitializedEvent, got %T", msg)
	}
}

func TestReadMessageEOF(t *testing.T) {
	_, err := readMessage(bufio.NewReader(strings.NewReader("")))
	if err == nil {
		t.Fatal("expected error at EOF")
	}
}

func TestSocketTransport(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		server := NewSocketTransportFromConn(conn)

		msg, err := server.Receive()
		if err != nil {
			t.Errorf("server receive: %v", err)
			return
		}
		req, ok := msg.(*godap.ThreadsRequest)
		if !ok {
			t.Errorf("expected *ThreadsRequest, got %T", msg)
			return
		}

		resp := &godap.ThreadsResponse{}
		resp.Type = "response"
		resp.RequestSeq = req.Seq
		resp.Success = true
		resp.Command = req.Command
		resp.Body.Threads = []godap.Thread{{Id: 1, Name: "main"}}
		if err := server.Send(resp); err != nil {
			t.Errorf("server send: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	transport, err := DialSocketTransport(ctx, listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer transport.Close()

	req := &godap.ThreadsRequest{}
	req.Seq = 5
	req.Type = "request"
	req.Command = "threads"
	if err := transport.Send(req); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg, err := transport.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	resp, ok := msg.(*godap.ThreadsResponse)
	if !ok {
		t.Fatalf("expected *ThreadsResponse, got %T", msg)
	}
	if resp.RequestSeq != 5 {
		t.Errorf("expected request_seq 5, got %d", resp.RequestSeq)
	}
	if len(resp.Body.Threads) != 1 || resp.Body.Threads[0].Name != "main" {
		t.Errorf("unexpected threads: %+v", resp.Body.Threads)
	}

	<-done
}

func TestRawTransport(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	client := NewRawTransport(clientConn)
	server := NewRawTransport(serverConn)
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, err := server.Receive()
		if err != nil {
			t.Errorf("server receive: %v", err)
			return
		}
		if err := server.Send(msg); err != nil {
			t.Errorf("server send: %v", err)
		}
	}()

	out := &godap.OutputEvent{}
	out.Seq = 1
	out.Type = "event"
	out.Event.Event = "output"
	out.Body.Category = "stdout"
	out.Body.Output = "hello\n"
	if err := client.Send(out); err != nil {
		t.Fatalf("send: %v", err)
	}

	msg, err := client.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	echo, ok := msg.(*godap.OutputEvent)
	if !ok {
		t.Fatalf("expected *OutputEvent, got %T", msg)
	}
	if echo.Body.Output != "hello\n" {
		t.Errorf("echo mismatch: got %q", echo.Body.Output)
	}

	<-done
}

func TestRawTransportClose(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	client := NewRawTransport(clientConn)
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := client.Receive(); err == nil {
		t.Fatal("expected error after close")
	}
}
