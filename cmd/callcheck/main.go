// Command callcheck places a real WebRTC call between two in-process peers
// through a running relay and reports whether the data channel opens.
//
// The relationship store must report the caller/callee pair as connected.
package main

import (
	"context"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

type options struct {
	URL     string
	Caller  string
	Callee  string
	Timeout time.Duration
	STUN    []string
}

func main() {
	var opts options
	pflag.StringVar(&opts.URL, "url", "ws://localhost:5000/ws", "relay websocket URL")
	pflag.StringVar(&opts.Caller, "caller", "doc-1", "caller user id")
	pflag.StringVar(&opts.Callee, "callee", "pat-1", "callee user id")
	pflag.DurationVar(&opts.Timeout, "timeout", 20*time.Second, "overall deadline")
	pflag.StringSliceVar(&opts.STUN, "stun", nil, "STUN server URLs")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Fatal().Err(err).Msg("callcheck failed")
	}
	log.Info().Msg("call established through relay")
}

func rtcConfig(stun []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(stun) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stun}}
	}
	return cfg
}

func run(ctx context.Context, opts options) error {
	callerSig, err := dialSignal(ctx, opts.URL)
	if err != nil {
		return err
	}
	defer callerSig.Close()
	calleeSig, err := dialSignal(ctx, opts.URL)
	if err != nil {
		return err
	}
	defer calleeSig.Close()

	if err := calleeSig.register(ctx, opts.Callee, "patient"); err != nil {
		return err
	}
	if err := callerSig.register(ctx, opts.Caller, "doctor"); err != nil {
		return err
	}

	callee, err := newCallee(calleeSig, rtcConfig(opts.STUN))
	if err != nil {
		return err
	}
	defer callee.Close()
	go callee.serve(ctx)

	caller, err := newCaller(callerSig, rtcConfig(opts.STUN))
	if err != nil {
		return err
	}
	defer caller.Close()

	return caller.call(ctx, opts.Caller, opts.Callee)
}
