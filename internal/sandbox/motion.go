package sandbox

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// MotionModule builds the animation/timing primitive set exposed to
// components as the `motion` capability. All functions are pure: output
// depends only on the arguments, which keeps frame rendering deterministic.
func MotionModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "motion",
		Members: starlark.StringDict{
			"lerp":        starlark.NewBuiltin("motion.lerp", motionLerp),
			"clamp":       starlark.NewBuiltin("motion.clamp", motionClamp),
			"map_range":   starlark.NewBuiltin("motion.map_range", motionMapRange),
			"ease_in":     starlark.NewBuiltin("motion.ease_in", motionEaseIn),
			"ease_out":    starlark.NewBuiltin("motion.ease_out", motionEaseOut),
			"ease_in_out": starlark.NewBuiltin("motion.ease_in_out", motionEaseInOut),
			"oscillate":   starlark.NewBuiltin("motion.oscillate", motionOscillate),
			"spring":      starlark.NewBuiltin("motion.spring", motionSpring),
		},
	}
}

func motionLerp(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, bb, t float64
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &a, &bb, &t); err != nil {
		return nil, err
	}
	return starlark.Float(a + (bb-a)*t), nil
}

func motionClamp(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, lo, hi float64
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &x, &lo, &hi); err != nil {
		return nil, err
	}
	return starlark.Float(math.Min(math.Max(x, lo), hi)), nil
}

func motionMapRange(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, inLo, inHi, outLo, outHi float64
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 5, &x, &inLo, &inHi, &outLo, &outHi); err != nil {
		return nil, err
	}
	if inHi == inLo {
		return nil, fmt.Errorf("%s: input range is empty", b.Name())
	}
	t := (x - inLo) / (inHi - inLo)
	return starlark.Float(outLo + (outHi-outLo)*t), nil
}

func motionEaseIn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t, err := unpackUnit(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	return starlark.Float(t * t * t), nil
}

func motionEaseOut(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t, err := unpackUnit(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	inv := 1 - t
	return starlark.Float(1 - inv*inv*inv), nil
}

func motionEaseInOut(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	t, err := unpackUnit(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	if t < 0.5 {
		return starlark.Float(4 * t * t * t), nil
	}
	inv := -2*t + 2
	return starlark.Float(1 - inv*inv*inv/2), nil
}

// oscillate(t, period=1.0, amplitude=1.0) swings between -amplitude and
// +amplitude with the given period in seconds.
func motionOscillate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t float64
	period := 1.0
	amplitude := 1.0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "t", &t, "period?", &period, "amplitude?", &amplitude); err != nil {
		return nil, err
	}
	if period == 0 {
		return nil, fmt.Errorf("%s: period must be non-zero", b.Name())
	}
	return starlark.Float(amplitude * math.Sin(2*math.Pi*t/period)), nil
}

// spring(t, stiffness=10, damping=0.6) approximates a damped spring
// settling toward 1.0 from 0.0.
func motionSpring(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t float64
	stiffness := 10.0
	damping := 0.6
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "t", &t, "stiffness?", &stiffness, "damping?", &damping); err != nil {
		return nil, err
	}
	if t <= 0 {
		return starlark.Float(0), nil
	}
	decay := math.Exp(-damping * stiffness * t)
	return starlark.Float(1 - decay*math.Cos(stiffness*t)), nil
}

func unpackUnit(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (float64, error) {
	var t float64
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &t); err != nil {
		return 0, err
	}
	return math.Min(math.Max(t, 0), 1), nil
}
