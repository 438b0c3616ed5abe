package debug

// Variable is a name/value pair in the selected frame's scope.
type Variable struct {
	// Name is the variable name.
	Name string

	// Value is the variable value as a string.
	Value string

	// Type is the variable type, empty when unknown.
	Type string

	// VariablesReference is the handle for child variables. 0 means none.
	VariablesReference int
}

// HasChildren returns true if this variable has child variables.
func (v Variable) HasChildren() bool {
	return v.VariablesReference > 0
}

// WatchResult is the outcome of evaluating a watch expression.
type WatchResult struct {
	Value string
	Error string
}

// Failed returns true if the evaluation produced an error.
func (r WatchResult) Failed() bool {
	return r.Error != ""
}

// String returns the value, or the error prefixed with "error: ".
func (r WatchResult) String() string {
	if r.Failed() {
		return "error: " + r.Error
	}
	return r.Value
}

// SetLocalVariables replaces the variables of the selected frame.
func (c *Coordinator) SetLocalVariables(vars []Variable) {
	c.localVariables = append([]Variable(nil), vars...)
	c.notify(Change{Kind: ChangeVariables})
}

// LocalVariables returns a copy of the selected frame's variables.
func (c *Coordinator) LocalVariables() []Variable {
	return append([]Variable(nil), c.localVariables...)
}

// SetChildVariables caches the expanded children of a compound value.
// References of 0 are ignored.
func (c *Coordinator) SetChildVariables(ref int, vars []Variable) {
	if ref <= 0 {
		return
	}
	c.children.Add(ref, append([]Variable(nil), vars...))
	c.notify(Change{Kind: ChangeVariables})
}

// ChildVariables returns the cached children for a reference.
func (c *Coordinator) ChildVariables(ref int) ([]Variable, bool) {
	v, ok := c.children.Get(ref)
	if !ok {
		return nil, false
	}
	vars := v.([]Variable)
	return append([]Variable(nil), vars...), true
}

// AddWatchExpression appends expr to the watch list. Expressions are
// compared verbatim; duplicates and empty strings are ignored. It returns
// true if the expression was added.
func (c *Coordinator) AddWatchExpression(expr string) bool {
	if expr == "" || c.watchIndex(expr) >= 0 {
		return false
	}
	c.watches = append(c.watches, expr)
	c.notify(Change{Kind: ChangeWatches})
	return true
}

// RemoveWatchExpression removes expr and its cached result.
func (c *Coordinator) RemoveWatchExpression(expr string) {
	i := c.watchIndex(expr)
	if i < 0 {
		return
	}
	c.watches = append(c.watches[:i:i], c.watches[i+1:]...)
	delete(c.watchResults, expr)
	c.notify(Change{Kind: ChangeWatches})
}

func (c *Coordinator) watchIndex(expr string) int {
	for i, w := range c.watches {
		if w == expr {
			return i
		}
	}
	return -1
}

// WatchExpressions returns the watch list in order.
func (c *Coordinator) WatchExpressions() []string {
	return append([]string(nil), c.watches...)
}

// SetWatchResult stores the outcome of evaluating a watched expression.
// A non-empty errMsg marks the evaluation as failed. Results for
// expressions that are not watched are dropped.
func (c *Coordinator) SetWatchResult(expr, value, errMsg string) {
	if c.watchIndex(expr) < 0 {
		return
	}
	c.watchResults[expr] = WatchResult{Value: value, Error: errMsg}
	c.notify(Change{Kind: ChangeWatches})
}

// WatchResult returns the cached result for expr.
func (c *Coordinator) WatchResult(expr string) (WatchResult, bool) {
	r, ok := c.watchResults[expr]
	return r, ok
}

// WatchResults returns a copy of all cached results.
func (c *Coordinator) WatchResults() map[string]WatchResult {
	result := make(map[string]WatchResult, len(c.watchResults))
	for k, v := range c.watchResults {
		result[k] = v
	}
	return result
}
