package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"errdeltas/internal/trace"
)

// setupTracing inspects trace-related flags and initializes the tracer.
// It returns the tracer, a cleanup function and an error if initialization
// fails.
func setupTracing(cmd *cobra.Command) (trace.Tracer, func(), error) {
	root := cmd.Root()

	traceOutput, err := root.PersistentFlags().GetString("trace")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := root.PersistentFlags().GetString("trace-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := root.PersistentFlags().GetString("trace-mode")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := root.PersistentFlags().GetInt("trace-ring-size")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeatInterval, err := root.PersistentFlags().GetDuration("trace-heartbeat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace level: %w", err)
	}

	// --trace без уровня включает трассировку по шагам
	if level == trace.LevelOff && traceOutput != "" {
		level = trace.LevelStep
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return trace.Nop, func() {}, nil
	}

	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace mode: %w", err)
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: traceOutput,
		RingSize:   ringSize,
		Heartbeat:  heartbeatInterval,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)
	cmd.Root().SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if heartbeatInterval > 0 {
		heartbeat = trace.StartHeartbeat(tracer, heartbeatInterval)
	}

	cleanup := func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

// ringOf returns the in-memory ring of t, if it keeps one.
func ringOf(t trace.Tracer) *trace.RingTracer {
	switch t := t.(type) {
	case *trace.RingTracer:
		return t
	case *trace.MultiTracer:
		return t.Ring()
	default:
		return nil
	}
}

// dumpRing writes the last traced events next to the failure, as Chrome JSON
// into errdeltas-crash.json.
func dumpRing(cmd *cobra.Command, t trace.Tracer) {
	ring := ringOf(t)
	if ring == nil {
		return
	}
	const path = "errdeltas-crash.json"
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: %v\n", err)
		return
	}
	defer f.Close()
	if err := ring.Dump(f, trace.FormatChrome); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "trace: last events written to %s\n", path)
}
