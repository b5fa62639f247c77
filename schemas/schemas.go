// Package schemas embeds the built-in object definitions.
package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/artpar/restschema/core/schema"
)

//go:embed *.yaml
var files embed.FS

// Builtin loads every embedded definition, sorted by file name.
func Builtin() ([]*schema.ObjectSchema, error) {
	names, err := fs.Glob(files, "*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	objects := make([]*schema.ObjectSchema, 0, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		obj, err := schema.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Source returns the raw YAML of a built-in definition file.
func Source(file string) ([]byte, error) {
	return files.ReadFile(file)
}

// MustMeeting returns the built-in meeting schema. It panics if the embedded
// definition is invalid, which the package tests rule out.
func MustMeeting() *schema.ObjectSchema {
	data, err := files.ReadFile("meetings.yaml")
	if err != nil {
		panic(err)
	}
	obj, err := schema.Parse(data)
	if err != nil {
		panic(err)
	}
	return obj
}
