package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Prompter collects a missing argument interactively.
type Prompter interface {
	Prompt(ctx context.Context, label string, secret bool) (string, error)
}

type prompterKey struct{}

// WithPrompter attaches p to ctx. Commands run with such a context ask for
// missing arguments instead of failing with "missing parameter".
func WithPrompter(ctx context.Context, p Prompter) context.Context {
	return context.WithValue(ctx, prompterKey{}, p)
}

// withoutPrompter detaches any Prompter; tool calls never prompt.
func withoutPrompter(ctx context.Context) context.Context {
	return context.WithValue(ctx, prompterKey{}, Prompter(nil))
}

func prompterFrom(ctx context.Context) Prompter {
	p, _ := ctx.Value(prompterKey{}).(Prompter)
	return p
}

// param describes one argument a command needs.
type param struct {
	name     string
	label    string
	secret   bool
	optional bool
}

// gather returns a copy of args with every required param present, asking
// the context Prompter for missing ones when there is one.
func gather(ctx context.Context, args Args, params ...param) (Args, error) {
	out := make(Args, len(args))
	for k, v := range args {
		out[k] = strings.TrimSpace(v)
	}

	p := prompterFrom(ctx)
	for _, prm := range params {
		if out[prm.name] != "" {
			continue
		}
		if p == nil {
			if prm.optional {
				continue
			}
			return nil, missing(prm.name)
		}
		v, err := p.Prompt(ctx, prm.label, prm.secret)
		if err != nil {
			return nil, fmt.Errorf("prompt for %s: %w", prm.name, err)
		}
		v = strings.TrimSpace(v)
		if v == "" && !prm.optional {
			return nil, missing(prm.name)
		}
		out[prm.name] = v
	}
	return out, nil
}

// decode copies args into the tagged struct pointed to by out, converting
// strings to numbers and booleans.
func decode(args Args, out any) error {
	in := make(map[string]any, len(args))
	for k, v := range args {
		if v != "" {
			in[k] = v
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		var me *mapstructure.Error
		if errors.As(err, &me) && len(me.Errors) > 0 {
			return invalid("", "invalid parameter: %s", me.Errors[0])
		}
		return invalid("", "invalid parameters: %v", err)
	}
	return nil
}

type loginParams struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type registerParams struct {
	Email      string `mapstructure:"email"`
	Password   string `mapstructure:"password"`
	NationalID string `mapstructure:"national_id"`
}

type bookParams struct {
	CarID     int64  `mapstructure:"car_id"`
	StartDate string `mapstructure:"start_date"`
	Duration  int    `mapstructure:"duration"`
}

type cancelParams struct {
	BookingID int64 `mapstructure:"booking_id"`
}

type revenueParams struct {
	StartDate string `mapstructure:"start_date"`
	EndDate   string `mapstructure:"end_date"`
}

type searchParams struct {
	Email string `mapstructure:"email"`
}

type maintenanceParams struct {
	CarID     int64 `mapstructure:"car_id"`
	Available bool  `mapstructure:"available"`
}

type auditParams struct {
	Limit int `mapstructure:"limit"`
}
