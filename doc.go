/*
Package tensorpipe allows to build and execute tensor pipelines.

Concept

A pipeline is a directed acyclic graph of named nodes. Tensor sets enter
the graph through sources, travel edge by edge and leave it through sinks:

    Source - the entry point, data is pushed into it by the caller;
    Filter - the transform, backed by a registered filter.Filter;
    Tee - duplicates the set to every output;
    Valve - forwards or silently drops the set;
    Selector - forwards the set to its active pad only;
    Sink - the exit point, data is delivered to the registered callback.

Every edge carries a tensor.SetSpec negotiated when the graph is built, so
the producer output always matches what the consumer expects.

Building

Graph is built with graph.Builder or decoded from a structural
description:

    g, err := graph.New("chain").
        AddSource("src", tensor.SetSpec{tensor.NewSpec(tensor.Int32, 10)}).
        AddFilter("f", "passthrough").
        AddSink("out").
        Connect("src", "f").
        Connect("f", "out").
        Build(nil)

Build fails with ErrCycleDetected, ErrDanglingEdge, ErrUnknownFilter or
ErrSpecMismatch.

Execution

Pipeline wraps a built graph and drives its run state:

    NULL -> READY -> PAUSED -> PLAYING

Start moves the pipeline to PLAYING through every intermediate state and
Stop returns it to NULL, discarding data in flight. Filter failure moves
the pipeline to UNKNOWN, the error is available with Err.

    p, err := tensorpipe.New(g)
    p.SetSinkCallback("out", func(s *tensor.Set, spec tensor.SetSpec) {
        defer s.Release()
        // consume s.
    })
    err = p.Start()
    err = p.InputData("src", set)
    err = p.Close()

Every source is served by its own goroutine, so sets pushed into the same
source are propagated in the order of admission. Every sink delivers sets
one by one. Valve and selector changes affect the sets admitted after the
call.
*/
package tensorpipe
