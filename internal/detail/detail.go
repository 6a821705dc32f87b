// Package detail loads single records and persists validated partial edits of them.
package detail

import (
	"context"
	ers "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/pawbridge/console-backend/internal/realtimedb"
	"github.com/pawbridge/console-backend/internal/utils"
	"github.com/pawbridge/console-backend/internal/utils/errors"
	"gopkg.in/go-playground/validator.v9"
)

// Load point-reads the record at path into dst. Missing record is a NotFoundError naming what.
func Load(ctx context.Context, db realtimedb.RealtimeDB, path, what string, dst interface{}) error {
	snap, err := Read(ctx, db, path, what)
	if err != nil {
		return err
	}
	return Decode(snap, what, dst)
}

// Read point-reads the record at path. Missing record is a NotFoundError naming what.
func Read(ctx context.Context, db realtimedb.RealtimeDB, path, what string) (realtimedb.Snapshot, error) {
	snap, err := db.Get(ctx, path)
	if err != nil {
		return realtimedb.Snapshot{}, errors.Remote("reading "+what, err)
	}
	if !snap.Exists() {
		return realtimedb.Snapshot{}, &errors.NotFoundError{Msg: fmt.Sprintf("%v not found", what)}
	}
	return snap, nil
}

// Decode unmarshals a read record.
func Decode(snap realtimedb.Snapshot, what string, dst interface{}) error {
	if err := snap.Unmarshal(dst); err != nil {
		return &errors.UnknownError{Msg: fmt.Sprintf("could not decode %v: %v", what, err)}
	}
	return nil
}

// Exists point-reads path and reports whether the record exists.
func Exists(ctx context.Context, db realtimedb.RealtimeDB, path, what string) error {
	snap, err := db.Get(ctx, path)
	if err != nil {
		return errors.Remote("reading "+what, err)
	}
	if !snap.Exists() {
		return &errors.NotFoundError{Msg: fmt.Sprintf("%v not found", what)}
	}
	return nil
}

// Save validates form, makes sure the record exists and merges fields into it. Nothing is written on failure.
func Save(ctx context.Context, db realtimedb.RealtimeDB, path, what string, form interface{}, fields map[string]interface{}) error {
	if err := Validate(form); err != nil {
		return err
	}
	if err := Exists(ctx, db, path, what); err != nil {
		return err
	}
	if err := db.Update(ctx, path, fields); err != nil {
		return errors.Remote("saving "+what, err)
	}
	return nil
}

// Validate validates form struct tags and reports the first failing field by its JSON name.
func Validate(form interface{}) error {
	err := utils.Validate.Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !ers.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return &errors.MalformedRequestError{Msg: err.Error()}
	}

	fe := fieldErrors[0]
	name := jsonName(form, fe.StructField())
	return &errors.ValidationError{Field: name, Msg: fmt.Sprintf("%v %v", name, describe(fe.Tag(), fe.Param()))}
}

// ValidateValue validates a single value against validator tag rule.
func ValidateValue(field string, value interface{}, rule string) error {
	if rule == "" {
		return nil
	}
	err := utils.Validate.Var(value, rule)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if ers.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		return &errors.ValidationError{Field: field, Msg: fmt.Sprintf("%v %v", field, describe(fieldErrors[0].Tag(), fieldErrors[0].Param()))}
	}
	return &errors.ValidationError{Field: field, Msg: fmt.Sprintf("%v is invalid", field)}
}

func describe(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "mobile":
		return "must be a mobile number starting with 9 and having 10 to 11 digits"
	case "gt":
		return fmt.Sprintf("must be greater than %v", param)
	case "max":
		return fmt.Sprintf("must be at most %v characters long", param)
	case "finite":
		return "must be a finite number"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %v", strings.ReplaceAll(param, " ", ", "))
	case "numeric":
		return "must be a number"
	default:
		return fmt.Sprintf("failed on %v", tag)
	}
}

func jsonName(form interface{}, structField string) string {
	t := reflect.TypeOf(form)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return structField
	}
	f, ok := t.FieldByName(structField)
	if !ok {
		return structField
	}
	tag := strings.Split(f.Tag.Get("json"), ",")[0]
	if tag == "" || tag == "-" {
		return structField
	}
	return tag
}
