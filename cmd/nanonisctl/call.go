package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

func newCallCmd(a *app) *cobra.Command {
	var argsJSON, schemaJSON string
	var noReply bool

	cmd := &cobra.Command{
		Use:   "call COMMAND",
		Short: "Run any command with JSON arguments and reply layout",
		Long: `Run any command of the TCP programming interface.

--args is a JSON array of {"type": TAG, "value": VALUE} objects, encoded in order. Lengths and
counts are not added implicitly, pass them as "int" arguments where the command expects them.

--schema is a JSON array describing the reply body without the error tail. Each element is a tag
name or an object {"type": TAG, "refs": [INDEX...]} naming the fields holding its lengths.

Tags: int, uint16, uint32, float32, float64, str, 1dint, 1duint16, 1duint32, 1dfloat32,
1dfloat64, 1dstr, 2dfloat32, 2dstr.

Example
	nanonisctl call Bias.Set --args '[{"type":"float32","value":0.1}]'
	nanonisctl call Signals.NamesGet --schema '["int","int","1dstr"]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			callArgs, err := parseArgs(argsJSON)
			if err != nil {
				return err
			}

			schema, err := parseSchema(schemaJSON)
			if err != nil {
				return err
			}

			return a.withSPM(cmd.Context(), func(conn *spmconn.Connection, _ *command.SPM) error {
				if noReply {
					if err := conn.Send(name, callArgs...); err != nil {
						return err
					}

					d := newDoc(name).set("sent", true)
					if d.err != nil {
						return d.err
					}
					_, err := fmt.Fprintln(a.out, d.json)

					return err
				}

				resp, err := conn.Exchange(name, callArgs, schema, a.callOptions()...)
				if err != nil {
					return err
				}

				d := newDoc(name).setRaw("values", "[]")
				for _, v := range resp.Values {
					d.set("values.-1", map[string]any{"type": v.Tag().String(), "value": v.Any()})
				}

				return a.emit(d, resp.Error)
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&argsJSON, "args", "a", "[]", "JSON array of typed arguments")
	flags.StringVarP(&schemaJSON, "schema", "s", "[]", "JSON array describing the reply body")
	flags.BoolVar(&noReply, "no-reply", false, "send without requesting a response")

	return cmd
}

// parseArgs turns a JSON array of {"type", "value"} objects into typed arguments.
func parseArgs(js string) ([]wire.Arg, error) {
	list, err := jsonArray(js, "args")
	if err != nil {
		return nil, err
	}

	args := make([]wire.Arg, 0, len(list))
	for i, item := range list {
		tag, err := wire.ParseTag(item.Get("type").String())
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}

		value := item.Get("value")
		if !value.Exists() {
			return nil, fmt.Errorf("argument %d: missing value", i)
		}

		v, err := argValue(tag, value)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, tag, err)
		}

		args = append(args, wire.Arg{Value: v, Tag: tag})
	}

	return args, nil
}

func argValue(tag wire.Tag, r gjson.Result) (any, error) {
	switch tag.Kind {
	case wire.Int32Kind, wire.UInt16Kind, wire.UInt32Kind:
		if r.Type != gjson.Number {
			return nil, errors.New("want a number")
		}
		return r.Int(), nil

	case wire.Float32Kind, wire.Float64Kind:
		return siNumber(r)

	case wire.StrKind:
		if r.Type != gjson.String {
			return nil, errors.New("want a string")
		}
		return r.String(), nil

	case wire.Array1DKind:
		elems, err := arrayOf(r)
		if err != nil {
			return nil, err
		}
		if tag.Elem == wire.Float32Kind || tag.Elem == wire.Float64Kind {
			return mapResults(elems, siNumber)
		}
		return mapResults(elems, func(e gjson.Result) (int64, error) {
			if e.Type != gjson.Number {
				return 0, errors.New("want numbers")
			}
			return e.Int(), nil
		})

	case wire.StringArray1DKind:
		elems, err := arrayOf(r)
		if err != nil {
			return nil, err
		}
		return mapResults(elems, stringResult)

	case wire.FloatArray2DKind:
		rows, err := arrayOf(r)
		if err != nil {
			return nil, err
		}
		return mapResults(rows, func(row gjson.Result) ([]float64, error) {
			elems, err := arrayOf(row)
			if err != nil {
				return nil, err
			}
			return mapResults(elems, siNumber)
		})

	case wire.StringArray2DKind:
		rows, err := arrayOf(r)
		if err != nil {
			return nil, err
		}
		return mapResults(rows, func(row gjson.Result) ([]string, error) {
			elems, err := arrayOf(row)
			if err != nil {
				return nil, err
			}
			return mapResults(elems, stringResult)
		})

	default:
		return nil, errors.New("unsupported tag")
	}
}

// parseSchema builds a schema from a JSON array of tag names or {"type", "refs"} objects.
func parseSchema(js string) (*wire.Schema, error) {
	list, err := jsonArray(js, "schema")
	if err != nil {
		return nil, err
	}

	fields := make([]wire.Field, 0, len(list))
	for i, item := range list {
		typeName := item.String()
		if item.IsObject() {
			typeName = item.Get("type").String()
		}

		tag, err := wire.ParseTag(typeName)
		if err != nil {
			return nil, fmt.Errorf("schema field %d: %w", i, err)
		}

		var refs []int
		for _, ref := range item.Get("refs").Array() {
			refs = append(refs, int(ref.Int()))
		}

		fields = append(fields, wire.Ref(tag, refs...))
	}

	return wire.NewSchemaFields(fields...)
}

func jsonArray(js, what string) ([]gjson.Result, error) {
	if !gjson.Valid(js) {
		return nil, fmt.Errorf("%s is not valid JSON", what)
	}

	r := gjson.Parse(js)
	if !r.IsArray() {
		return nil, fmt.Errorf("%s should be a JSON array", what)
	}

	return r.Array(), nil
}

func arrayOf(r gjson.Result) ([]gjson.Result, error) {
	if !r.IsArray() {
		return nil, fmt.Errorf("want an array, got %s", r.Raw)
	}

	return r.Array(), nil
}

func stringResult(r gjson.Result) (string, error) {
	if r.Type != gjson.String {
		return "", fmt.Errorf("want strings, got %s", r.Raw)
	}

	return r.String(), nil
}

func mapResults[T any](in []gjson.Result, fn func(gjson.Result) (T, error)) ([]T, error) {
	out := make([]T, 0, len(in))
	for _, r := range in {
		v, err := fn(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}
