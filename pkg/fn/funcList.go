package fn

// FuncList collects functions executed in reverse order of addition.
type FuncList struct {
	funcs []func()
}

// AddFunc appends f to the list.
func (l *FuncList) AddFunc(f func()) {
	l.funcs = append(l.funcs, f)
}

// Execute calls the functions from the last added to the first one.
func (l *FuncList) Execute() {
	for i := len(l.funcs) - 1; i >= 0; i-- {
		l.funcs[i]()
	}
}

// ToFunction returns a function which executes a copy of the current list.
func (l *FuncList) ToFunction() func() {
	funcs := make([]func(), len(l.funcs))
	copy(funcs, l.funcs)
	return func() {
		for i := len(funcs) - 1; i >= 0; i-- {
			funcs[i]()
		}
	}
}
