package notifier

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/dynoinc/discussbridge/internal/payload"
)

const (
	createdAction = "created"
	emptyBody     = "<empty body>"
	bodyLimit     = 200
	ellipsis      = "..."
)

var ErrNotDiscussion = errors.New("not a discussion payload")

type Discussion struct {
	Author string
	Title  string
	Body   string
	URL    string
}

// Classify reports whether the event carries the created action. A missing
// action counts as created; any other value, including a non-string one,
// does not.
func Classify(event payload.Object) (string, bool) {
	action := event.String("action")
	switch action.State {
	case payload.Absent:
		return "", true
	case payload.Mismatch:
		return fmt.Sprintf("%v", event["action"]), false
	default:
		return action.V, action.V == createdAction
	}
}

// Extract pulls the notification fields out of the event's discussion
// object. It returns ErrNotDiscussion when the object is missing and a
// *payload.FieldError when a required field is.
func Extract(event payload.Object) (Discussion, error) {
	d, ok := event.Object("discussion").Get()
	if !ok {
		return Discussion{}, ErrNotDiscussion
	}

	title, err := d.String("title").Require("discussion.title")
	if err != nil {
		return Discussion{}, err
	}

	htmlURL, err := d.String("html_url").Require("discussion.html_url")
	if err != nil {
		return Discussion{}, err
	}

	user, err := d.Object("user").Require("discussion.user")
	if err != nil {
		return Discussion{}, err
	}

	login, err := user.String("login").Require("discussion.user.login")
	if err != nil {
		return Discussion{}, err
	}

	return Discussion{
		Author: login,
		Title:  title,
		Body:   d.String("body").Or(emptyBody),
		URL:    htmlURL,
	}, nil
}

func Format(d Discussion) string {
	return fmt.Sprintf(
		"New Discussion Created by _%s_:\n*%s*\n%s\n\nopen: %s",
		d.Author, d.Title, truncate(d.Body), d.URL,
	)
}

// truncate keeps the first bodyLimit runes. The ellipsis is decided on the
// byte length, so multi-byte bodies shorter than bodyLimit runes can still
// get one.
func truncate(body string) string {
	taken := body
	if utf8.RuneCountInString(body) > bodyLimit {
		n := 0
		for i := range body {
			if n == bodyLimit {
				taken = body[:i]
				break
			}
			n++
		}
	}

	if len(body) > bodyLimit {
		return taken + ellipsis
	}

	return taken
}
