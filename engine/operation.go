package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/kbukum/execkit/timeout"
)

// Operation is a unit of work the engine can run. Name identifies the
// operation for its breaker, latency history and timeout category.
type Operation interface {
	Name() string
	Invoke(ctx context.Context) (any, error)
}

// Arguments is implemented by operations whose identity depends on their
// inputs. Calls with equal names and equal arguments are coalesced.
type Arguments interface {
	Args() []any
}

// Categorized is implemented by operations that declare their timeout
// category instead of having it inferred from the name.
type Categorized interface {
	Category() timeout.Category
}

// Func is the signature wrapped by Op.
type Func func(ctx context.Context) (any, error)

// FuncOp adapts a function into an Operation.
type FuncOp struct {
	name     string
	fn       Func
	args     []any
	category timeout.Category
}

// Op wraps fn as an operation named name. args take part in the
// operation's key, so two calls coalesce only when their args are equal.
func Op(name string, fn Func, args ...any) *FuncOp {
	return &FuncOp{name: name, fn: fn, args: args}
}

// WithCategory declares the operation's timeout category.
func (o *FuncOp) WithCategory(c timeout.Category) *FuncOp {
	o.category = c
	return o
}

func (o *FuncOp) Name() string                            { return o.name }
func (o *FuncOp) Invoke(ctx context.Context) (any, error) { return o.fn(ctx) }
func (o *FuncOp) Args() []any                             { return o.args }
func (o *FuncOp) Category() timeout.Category              { return o.category }

// OperationKey returns the identity used for coalescing: the name alone
// for operations without arguments, else name + ":" + Fingerprint(args).
func OperationKey(op Operation) string {
	a, ok := op.(Arguments)
	if !ok {
		return op.Name()
	}
	args := a.Args()
	if len(args) == 0 {
		return op.Name()
	}
	return op.Name() + ":" + Fingerprint(args...)
}

// Fingerprint hashes the JSON encoding of args. Values that cannot be
// encoded as JSON fall back to their Go syntax representation.
func Fingerprint(args ...any) string {
	b, err := json.Marshal(args)
	if err != nil {
		b = fmt.Appendf(nil, "%#v", args)
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
