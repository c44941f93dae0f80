package main

import (
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
)

// doc builds a JSON result document one path at a time. The first failed set is kept in err.
type doc struct {
	command string
	json    string
	err     error
}

func newDoc(command string) *doc {
	d := &doc{command: command, json: "{}"}

	return d.set("command", command)
}

func (d *doc) set(path string, value any) *doc {
	if d.err != nil {
		return d
	}

	d.json, d.err = sjson.Set(d.json, path, value)

	return d
}

func (d *doc) setRaw(path, raw string) *doc {
	if d.err != nil {
		return d
	}

	d.json, d.err = sjson.SetRaw(d.json, path, raw)

	return d
}

func (d *doc) record(rec nanonis.ErrorRecord) *doc {
	return d.set("error.status", rec.Status).set("error.description", rec.Description)
}

// emit writes the document and returns the remote fault of rec, if any, so the exit status is
// non-zero.
func (a *app) emit(d *doc, rec nanonis.ErrorRecord) error {
	d.record(rec)
	if d.err != nil {
		return fmt.Errorf("render result: %w", d.err)
	}

	if _, err := fmt.Fprintln(a.out, d.json); err != nil {
		return err
	}

	if !rec.OK() {
		return &nanonis.RemoteError{Command: d.command, Status: rec.Status, Description: rec.Description}
	}

	return nil
}
