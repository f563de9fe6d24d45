// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/ALT-F4-LLC/lp2jira/internal/source"
)

// Fake serves canned objects and counts calls per method.
type Fake struct {
	Tasks          []source.Task
	Bugs           map[int]source.Bug
	BugTaskLists   map[int][]source.Task
	MessageLists   map[int][]source.Message
	ActivityLists  map[int][]source.Activity
	AttachmentList map[int][]source.Attachment
	Payloads       map[string]string
	DuplicateIDs   map[int][]int
	People         map[string]source.Person
	SubscriberList []string
	ReleaseList    []source.Release
	Specs          map[string]source.Specification

	// Errs forces the named method to fail.
	Errs map[string]error

	mu    sync.Mutex
	calls map[string]int
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		Bugs:           map[int]source.Bug{},
		BugTaskLists:   map[int][]source.Task{},
		MessageLists:   map[int][]source.Message{},
		ActivityLists:  map[int][]source.Activity{},
		AttachmentList: map[int][]source.Attachment{},
		Payloads:       map[string]string{},
		DuplicateIDs:   map[int][]int{},
		People:         map[string]source.Person{},
		Specs:          map[string]source.Specification{},
		Errs:           map[string]error{},
	}
}

var _ source.Source = (*Fake)(nil)

func (f *Fake) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[method]++
	return f.Errs[method]
}

// Calls returns how often method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, source.ErrNotFound)
}

func (f *Fake) SearchTasks(_ context.Context, _ source.SearchFilter) ([]source.Task, error) {
	if err := f.record("SearchTasks"); err != nil {
		return nil, err
	}
	return f.Tasks, nil
}

func (f *Fake) Bug(_ context.Context, id int) (source.Bug, error) {
	if err := f.record("Bug"); err != nil {
		return source.Bug{}, err
	}
	b, ok := f.Bugs[id]
	if !ok {
		return source.Bug{}, notFound(fmt.Sprintf("bug %d", id))
	}
	return b, nil
}

func (f *Fake) BugTasks(_ context.Context, bugID int) ([]source.Task, error) {
	if err := f.record("BugTasks"); err != nil {
		return nil, err
	}
	return f.BugTaskLists[bugID], nil
}

func (f *Fake) Messages(_ context.Context, bugID int) ([]source.Message, error) {
	if err := f.record("Messages"); err != nil {
		return nil, err
	}
	return f.MessageLists[bugID], nil
}

func (f *Fake) Activity(_ context.Context, bugID int) ([]source.Activity, error) {
	if err := f.record("Activity"); err != nil {
		return nil, err
	}
	return f.ActivityLists[bugID], nil
}

func (f *Fake) Attachments(_ context.Context, bugID int) ([]source.Attachment, error) {
	if err := f.record("Attachments"); err != nil {
		return nil, err
	}
	return f.AttachmentList[bugID], nil
}

// OpenAttachment serves Payloads[a.DataLink]. A missing payload fails.
func (f *Fake) OpenAttachment(_ context.Context, a source.Attachment) (io.ReadCloser, error) {
	if err := f.record("OpenAttachment"); err != nil {
		return nil, err
	}
	p, ok := f.Payloads[a.DataLink]
	if !ok {
		return nil, errors.New("connection reset")
	}
	return io.NopCloser(strings.NewReader(p)), nil
}

func (f *Fake) Duplicates(_ context.Context, bugID int) ([]int, error) {
	if err := f.record("Duplicates"); err != nil {
		return nil, err
	}
	return f.DuplicateIDs[bugID], nil
}

func (f *Fake) Person(_ context.Context, name string) (source.Person, error) {
	if err := f.record("Person"); err != nil {
		return source.Person{}, err
	}
	p, ok := f.People[name]
	if !ok {
		return source.Person{}, notFound("person " + name)
	}
	return p, nil
}

func (f *Fake) Subscribers(_ context.Context) ([]string, error) {
	if err := f.record("Subscribers"); err != nil {
		return nil, err
	}
	return f.SubscriberList, nil
}

func (f *Fake) Releases(_ context.Context) ([]source.Release, error) {
	if err := f.record("Releases"); err != nil {
		return nil, err
	}
	return f.ReleaseList, nil
}

func (f *Fake) Specification(_ context.Context, name string) (source.Specification, error) {
	if err := f.record("Specification"); err != nil {
		return source.Specification{}, err
	}
	s, ok := f.Specs[name]
	if !ok {
		return source.Specification{}, notFound("specification " + name)
	}
	return s, nil
}

func (f *Fake) Specifications(_ context.Context) ([]string, error) {
	if err := f.record("Specifications"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Specs))
	for n := range f.Specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
