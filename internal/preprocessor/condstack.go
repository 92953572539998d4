package preprocessor

// ---------------- Conditionals ----------------

type blockKind int

const (
	blockIf blockKind = iota
	blockElse
	blockInactiveIf
	blockIncludeBoundary
)

// branchStatus tracks an #if/#elseif chain. branchAlready is sticky: once a
// branch has fired every later branch of the chain is dead.
type branchStatus int

const (
	branchNotYet branchStatus = iota
	branchNow
	branchAlready
)

type condFrame struct {
	kind   blockKind
	status branchStatus // blockIf only
	active bool         // blockElse only
	line   int
}

// Active frames already account for their parent, so only the innermost
// frame decides whether a line is live.
func (f *condFrame) Active() bool {
	switch f.kind {
	case blockIf:
		return f.status == branchNow
	case blockElse:
		return f.active
	case blockInactiveIf:
		return false
	default:
		return true
	}
}

type condStack struct {
	stack []condFrame
}

func (c *condStack) Depth() int { return len(c.stack) }

func (c *condStack) Active() bool {
	if len(c.stack) == 0 {
		return true
	}
	return c.stack[len(c.stack)-1].Active()
}

func (c *condStack) Push(f condFrame) {
	c.stack = append(c.stack, f)
}

// Top returns the innermost frame above base, or nil when the stack holds
// no more than base frames.
func (c *condStack) Top(base int) *condFrame {
	if len(c.stack) <= base {
		return nil
	}
	return &c.stack[len(c.stack)-1]
}

func (c *condStack) Pop() {
	if len(c.stack) == 0 {
		return
	}
	c.stack = c.stack[:len(c.stack)-1]
}
