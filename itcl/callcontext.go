package itcl

import "github.com/sirupsen/logrus"

// CallContext identifies the object, class and member of one active
// invocation. Re-entrant invocations of the same member on the same object
// share one record.
type CallContext struct {
	// ObjectFlags and ClassFlags are snapshots taken when the record was created.
	ObjectFlags ObjectFlags
	ClassFlags  ClassFlags
	Namespace   string
	Object      *Object
	Class       *Class
	Member      *Function
	refCount    int
}

// RefCount is the number of stack slots holding the record.
func (c *CallContext) RefCount() int {
	return c.refCount
}

func (c *CallContext) frame() StackFrame {
	frame := StackFrame{}
	if c.Member != nil {
		frame.Member = c.Member.FullName
	}
	if c.Object != nil {
		frame.Object = c.Object.Name
	}
	return frame
}

func (r *Registry) contextCacheFor(obj *Object, cls *Class) map[*Function]*CallContext {
	if obj != nil {
		return obj.contextCache
	}
	if cls != nil {
		return cls.contextCache
	}
	return nil
}

// PushContext makes (obj, cls, member) the active context. obj is nil for
// procs. The push fails once the stack reaches Config.RecursionLimit.
func (r *Registry) PushContext(obj *Object, cls *Class, member *Function) (*CallContext, error) {
	depth := r.contexts.Len()
	if depth >= r.config.RecursionLimit {
		name := ""
		if member != nil {
			name = member.FullName
		}
		return nil, resolutionErrorf(ErrRecursionLimit, name, "recursion depth exceeded (limit %d)", r.config.RecursionLimit)
	}
	cache := r.contextCacheFor(obj, cls)
	ctx, shared := cache[member]
	if !shared || ctx.refCount == 0 || ctx.Class != cls {
		ctx = &CallContext{Object: obj, Class: cls, Member: member}
		if obj != nil {
			ctx.ObjectFlags = obj.flags
		}
		if cls != nil {
			ctx.ClassFlags = cls.flags
			ctx.Namespace = cls.FullName
		}
		if cache != nil && member != nil {
			cache[member] = ctx
		}
		r.liveContexts++
	}
	ctx.refCount++
	r.contexts.Push(ctx)
	if depth+1 >= contextDepthNotice && (depth+1)%contextDepthNotice == 0 {
		r.log.WithFields(contextFields(ctx)).WithField("depth", depth+1).Debug("call context stack is deep")
	}
	return ctx, nil
}

// PopContext removes ctx from the top of the stack. Popping an empty stack
// returns ErrStackEmpty; popping anything but the top record panics.
func (r *Registry) PopContext(ctx *CallContext) error {
	top, ok := r.contexts.Peek()
	if !ok {
		return &Error{Kind: ResolutionError, Op: "pop context", Message: "call context stack is empty", Err: ErrStackEmpty}
	}
	assert(top == ctx, "call context pop out of order: top is %v", top.frame())
	assert(ctx.refCount > 0, "call context %v popped with no references", ctx.frame())
	_, _ = r.contexts.Pop()
	ctx.refCount--
	if ctx.refCount == 0 {
		if cache := r.contextCacheFor(ctx.Object, ctx.Class); cache != nil && cache[ctx.Member] == ctx {
			delete(cache, ctx.Member)
		}
		r.liveContexts--
	}
	return nil
}

// CurrentContext returns the active context, or nil outside any member.
func (r *Registry) CurrentContext() *CallContext {
	ctx, _ := r.contexts.Peek()
	return ctx
}

// ContextDepth is the number of active stack slots.
func (r *Registry) ContextDepth() int {
	return r.contexts.Len()
}

// LiveContexts is the number of distinct records still referenced by the stack.
func (r *Registry) LiveContexts() int {
	return r.liveContexts
}

func contextFields(ctx *CallContext) logrus.Fields {
	fields := logrus.Fields{}
	if ctx.Class != nil {
		fields["class"] = ctx.Class.FullName
	}
	if ctx.Object != nil {
		fields["object"] = ctx.Object.Name
	}
	if ctx.Member != nil {
		fields["member"] = ctx.Member.Name
	}
	return fields
}
