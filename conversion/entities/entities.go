// Package entities extracts geometric entities from DXF drawings. The
// ASCII DXF format is a flat stream of (group code, value) line pairs;
// only the ENTITIES section is walked, and only the entity kinds useful
// downstream are kept.
package entities

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Point is an x, y, z coordinate triple.
type Point [3]float64

// Element is one extracted drawing entity. Data holds the kind-specific
// fields: start/end/length for lines, center/radius for circles,
// text/insert/height for text.
type Element struct {
	Kind  string         `json:"kind"`
	Layer string         `json:"layer"`
	Data  map[string]any `json:"data"`
}

type tag struct {
	code  int
	value string
}

// Parse reads an ASCII DXF document and returns its LINE, CIRCLE and
// TEXT entities. Other entity kinds are skipped.
func Parse(r io.Reader) ([]Element, error) {
	scanner := bufio.NewScanner(r)

	elements := []Element{}
	var (
		section      string
		awaitSection bool
		kind         string
		tags         []tag
	)

	flush := func() error {
		if kind == "" {
			return nil
		}
		el, ok, err := build(kind, tags)
		if err != nil {
			return err
		}
		if ok {
			elements = append(elements, el)
		}
		kind = ""
		tags = nil
		return nil
	}

	for {
		code, value, ok, err := readPair(scanner)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		if awaitSection {
			if code == 2 {
				section = value
			}
			awaitSection = false
			continue
		}

		if code == 0 {
			switch value {
			case "SECTION":
				awaitSection = true
			case "ENDSEC":
				if err := flush(); err != nil {
					return nil, err
				}
				section = ""
			case "EOF":
				if err := flush(); err != nil {
					return nil, err
				}
				return elements, nil
			default:
				if section == "ENTITIES" {
					if err := flush(); err != nil {
						return nil, err
					}
					kind = value
				}
			}
			continue
		}

		if kind != "" {
			tags = append(tags, tag{code: code, value: value})
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return elements, nil
}

// readPair consumes one group code line and its value line.
func readPair(scanner *bufio.Scanner) (int, string, bool, error) {
	if !scanner.Scan() {
		return 0, "", false, scanner.Err()
	}
	codeLine := strings.TrimSpace(scanner.Text())

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, "", false, err
		}
		return 0, "", false, fmt.Errorf("truncated tag pair after group code %q", codeLine)
	}
	value := strings.TrimRight(scanner.Text(), "\r")

	code, err := strconv.Atoi(codeLine)
	if err != nil {
		return 0, "", false, fmt.Errorf("malformed group code %q", codeLine)
	}
	return code, strings.TrimSpace(value), true, nil
}

func build(kind string, tags []tag) (Element, bool, error) {
	get := func(code int) string {
		for _, t := range tags {
			if t.code == code {
				return t.value
			}
		}
		return ""
	}
	num := func(code int) (float64, error) {
		raw := get(code)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: malformed group %d value %q", kind, code, raw)
		}
		return v, nil
	}
	point := func(x, y, z int) (Point, error) {
		var p Point
		for i, code := range []int{x, y, z} {
			v, err := num(code)
			if err != nil {
				return p, err
			}
			p[i] = v
		}
		return p, nil
	}

	var data map[string]any
	switch kind {
	case "LINE":
		start, err := point(10, 20, 30)
		if err != nil {
			return Element{}, false, err
		}
		end, err := point(11, 21, 31)
		if err != nil {
			return Element{}, false, err
		}
		data = map[string]any{
			"start":  start,
			"end":    end,
			"length": distance(start, end),
		}
	case "CIRCLE":
		center, err := point(10, 20, 30)
		if err != nil {
			return Element{}, false, err
		}
		radius, err := num(40)
		if err != nil {
			return Element{}, false, err
		}
		data = map[string]any{
			"center": center,
			"radius": radius,
		}
	case "TEXT":
		insert, err := point(10, 20, 30)
		if err != nil {
			return Element{}, false, err
		}
		height, err := num(40)
		if err != nil {
			return Element{}, false, err
		}
		data = map[string]any{
			"text":   get(1),
			"insert": insert,
			"height": height,
		}
	default:
		return Element{}, false, nil
	}

	return Element{Kind: kind, Layer: get(8), Data: data}, true, nil
}

func distance(a, b Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	dz := b[2] - a[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
