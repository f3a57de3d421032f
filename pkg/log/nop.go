package log

type nop struct{}

// Nop returns a Logger that discards everything. Used in tests and as the
// fallback when no logger is injected.
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...Field) {}
func (nop) Info(string, ...Field)  {}
func (nop) Warn(string, ...Field)  {}
func (nop) Error(string, ...Field) {}
