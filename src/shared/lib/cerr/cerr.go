package cerr

import (
	"fmt"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// F is a convenience alias for attaching several fields at once.
type F map[string]interface{}

// Context accumulates structured fields that get attached to the
// error produced by Error. Values are carried as error details so
// they survive wrapping and show up in logs.
type Context struct {
	fields  []field
	wrapped error
}

type field struct {
	key   string
	value interface{}
}

func Field(key string, value interface{}) Context {
	return Context{}.Field(key, value)
}

func Fields(fields F) Context {
	return Context{}.Fields(fields)
}

func Wrap(err error) Context {
	return Context{}.Wrap(err)
}

func Error(msg string) error {
	return Context{}.Error(msg)
}

func (c Context) Field(key string, value interface{}) Context {
	newCtx := c
	newCtx.fields = append(newCtx.fields[:len(newCtx.fields):len(newCtx.fields)], field{key: key, value: value})
	return newCtx
}

func (c Context) Fields(fields F) Context {
	newCtx := c
	for key, value := range fields {
		newCtx = newCtx.Field(key, value)
	}
	return newCtx
}

func (c Context) Wrap(err error) Context {
	newCtx := c
	newCtx.wrapped = err
	return newCtx
}

func (c Context) Error(msg string) error {
	var err error
	if c.wrapped != nil {
		err = errors.Wrap(c.wrapped, msg)
	} else {
		err = errors.New(msg)
	}

	for _, f := range c.fields {
		err = errors.WithDetailf(err, "%s: %v", f.key, f.value)
	}

	return err
}

// Log writes out the full error chain with all attached details.
func Log(err error) {
	if err == nil {
		return
	}

	log.Error(fmt.Sprintf("%+v", err))
}
