// Package console reads shot coordinates from a line-oriented text stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"seabattle/internal/game"
)

var ErrNoInput = errors.New("input closed")

// Input reads "x y" pairs, one per line. Lines that do not parse are
// reported to the prompt writer and skipped.
type Input struct {
	sc     *bufio.Scanner
	prompt io.Writer
}

func NewInput(r io.Reader, prompt io.Writer) *Input {
	return &Input{sc: bufio.NewScanner(r), prompt: prompt}
}

func (in *Input) NextTarget(ctx context.Context, v game.View) (game.Coord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return game.Coord{}, err
		}
		if in.prompt != nil {
			fmt.Fprintf(in.prompt, "Enter coordinates for your shot (X Y, 0-%d): ", v.Size()-1)
		}
		if !in.sc.Scan() {
			if err := in.sc.Err(); err != nil {
				return game.Coord{}, err
			}
			return game.Coord{}, ErrNoInput
		}
		c, err := ParseCoord(in.sc.Text())
		if err != nil {
			if in.prompt != nil {
				fmt.Fprintln(in.prompt, err)
			}
			continue
		}
		return c, nil
	}
}

// ParseCoord parses "x y" or "x,y".
func ParseCoord(s string) (game.Coord, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(fields) != 2 {
		return game.Coord{}, fmt.Errorf("want two integers, got %q", strings.TrimSpace(s))
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return game.Coord{}, fmt.Errorf("bad x: %w", err)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return game.Coord{}, fmt.Errorf("bad y: %w", err)
	}
	return game.Coord{X: x, Y: y}, nil
}
