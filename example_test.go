package sandkasse_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/havarnov/sandkasse"
	"github.com/havarnov/sandkasse/callback"
)

func Example() {
	ctx := context.Background()

	rt, err := sandkasse.New(ctx)
	if err != nil {
		panic(err)
	}
	defer rt.Close(ctx)

	s, err := rt.CreateSession(ctx)
	if err != nil {
		panic(err)
	}

	add := callback.Func2(func(a, b int32) int32 { return a + b })
	if err := s.Register(ctx, "add", add); err != nil {
		panic(err)
	}

	n, err := sandkasse.Eval[int32](ctx, s, "add(42, 22)")
	fmt.Println(n, err)

	_, err = sandkasse.Eval[int32](ctx, s, `add("42", 22)`)
	fmt.Println(errors.Is(err, sandkasse.ErrArityOrTypeMismatch))
	// Output:
	// 64 <nil>
	// true
}
