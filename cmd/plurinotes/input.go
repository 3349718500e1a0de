package main

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/aretw0/plurinotes/pkg/core"
)

// inputValidate is the validator instance for command input.
var inputValidate *validator.Validate

// noteIDPattern matches the identifiers a \ref{} marker can point to.
var noteIDPattern = regexp.MustCompile(`^\w+$`)

func init() {
	inputValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = inputValidate.RegisterValidation("noteid", func(fl validator.FieldLevel) bool {
		return noteIDPattern.MatchString(fl.Field().String())
	})
}

// newNoteID returns a random identifier usable in a \ref{} marker.
func newNoteID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// contentInput is the version content accepted by note create and edit.
type contentInput struct {
	Text        string `validate:"max=1048576"`
	Description string `validate:"max=4096"`
	Filename    string `validate:"max=1024"`
	Action      string `validate:"max=4096"`
	Status      string `validate:"omitempty,oneof=in-progress standby done"`
	Priority    int    `validate:"gte=0,lte=5"`
	Deadline    string `validate:"omitempty,datetime=2006-01-02"`
}

func (c *contentInput) bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.Text, "text", "", "Article text")
	flags.StringVar(&c.Description, "description", "", "Media description")
	flags.StringVar(&c.Filename, "filename", "", "Media file name")
	flags.StringVar(&c.Action, "action", "", "Task action")
	flags.StringVar(&c.Status, "status", "", "Task status: in-progress, standby or done")
	flags.IntVar(&c.Priority, "priority", 0, "Task priority (0-5)")
	flags.StringVar(&c.Deadline, "deadline", "", "Task deadline (YYYY-MM-DD)")
}

// attributes returns the attributes whose flags were set on the command
// line, or every field when all is true.
func (c *contentInput) attributes(flags *pflag.FlagSet, all bool) (core.Attributes, error) {
	attrs := core.Attributes{}
	set := func(flag, key string, value any) {
		if all || flags.Changed(flag) {
			attrs[key] = value
		}
	}
	set("text", core.AttrText, c.Text)
	set("description", core.AttrDescription, c.Description)
	set("filename", core.AttrFilename, c.Filename)
	set("action", core.AttrAction, c.Action)
	set("priority", core.AttrPriority, c.Priority)
	if c.Status != "" {
		set("status", core.AttrStatus, c.Status)
	}
	if flags.Changed("deadline") {
		if c.Deadline == "" {
			attrs[core.AttrDeadline] = time.Time{}
		} else {
			d, err := time.Parse(time.DateOnly, c.Deadline)
			if err != nil {
				return nil, fmt.Errorf("invalid deadline: %w", err)
			}
			attrs[core.AttrDeadline] = d
		}
	}
	return attrs, nil
}

// createInput is validated before a note is created.
type createInput struct {
	ID    string `validate:"required,noteid,max=64"`
	Title string `validate:"max=512"`
	Kind  string `validate:"required,oneof=article media task"`
	contentInput
}

// relationInput is validated before a relation is created.
type relationInput struct {
	Name        string `validate:"required,max=128,ne=Reference"`
	Description string `validate:"max=4096"`
}

// coupleInput is validated before a couple is added or relabeled.
type coupleInput struct {
	Relation string `validate:"required"`
	A        string `validate:"required,noteid"`
	B        string `validate:"required,noteid"`
	Label    string `validate:"max=256"`
}
