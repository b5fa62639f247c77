/*
Package schema defines the declarative object definitions the client core is
driven by.

An object definition describes one REST resource: where it lives, which
operations it supports, which query parameters its list operation accepts,
which fields its create and update payloads carry, and which properties its
records expose.

# Object Definition

A minimal definition in YAML:

	object: meeting
	endpoint: meetings
	objectType: meeting
	methods: [list, get, create, update, delete]

	queryParameters:
	  - { name: max,   type: int }
	  - { name: from_, wireName: from, description: Start of the time range }

	create:
	  required: [title, start, end]
	  optional:
	    - agenda
	    - { name: invitees, type: list }

	properties:
	  - { name: id,    description: Unique identifier }
	  - { name: title, description: Meeting title }

# Field References

Entries of create/update lists are either a bare name or an inline
parameter. Bare names are resolved once, at load time, against the
definition's shared "fields" dictionary and then against "properties".
A name found in neither is a plain string field.

# Types

  - string: text, never coerced
  - bool:   coerced from common truthy/falsy representations
  - int:    coerced from numeric strings and numbers
  - list:   opaque array value
  - dict:   opaque object value

# Wire Names

A parameter's logical name is what callers use; its wire name is what goes
on the wire. The wire name defaults to the logical name:

	- { name: from_, wireName: from }

# Actions

Sub-endpoint operations beyond CRUD are declared under "actions":

	actions:
	  accessSummary:
	    kind: list
	    path: accessSummary
	    parameters:
	      - { name: hostEmail, default: all }

# Parsing

	obj, err := schema.ParseFile("schemas/meetings.yaml")
	objs, err := schema.ParseDir("schemas/")

Every definition is validated on load; the returned ObjectSchema is
immutable and safe to share between goroutines.
*/
package schema
