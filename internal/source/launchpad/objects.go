package launchpad

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/ALT-F4-LLC/lp2jira/internal/source"
)

// SearchTasks returns the project's bug tasks matching f.
func (c *Client) SearchTasks(ctx context.Context, f source.SearchFilter) ([]source.Task, error) {
	params := url.Values{"ws.op": {"searchTasks"}}
	for _, s := range f.Statuses {
		params.Add("status", s)
	}
	for _, it := range f.InformationTypes {
		params.Add("information_type", it)
	}

	entries, err := c.collection(ctx, c.projectURL(params))
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return toTasks(entries), nil
}

// Bug returns the bug with the given number.
func (c *Client) Bug(ctx context.Context, id int) (source.Bug, error) {
	e, err := c.getEntry(ctx, bugPath(id, ""))
	if err != nil {
		return source.Bug{}, fmt.Errorf("get bug %d: %w", id, err)
	}

	var tags []string
	if raw, ok := e["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	return source.Bug{
		ID:          e.integer("id"),
		Title:       e.str("title"),
		Description: e.str("description"),
		Tags:        tags,
		Owner:       e.id("owner_link"),
		Created:     e.timestamp("date_created"),
		Updated:     e.timestamp("date_last_updated"),
		Attrs:       source.Attrs(e),
	}, nil
}

// BugTasks returns every task of a bug, across all targets.
func (c *Client) BugTasks(ctx context.Context, bugID int) ([]source.Task, error) {
	entries, err := c.collection(ctx, bugPath(bugID, "bug_tasks"))
	if err != nil {
		return nil, fmt.Errorf("get tasks of bug %d: %w", bugID, err)
	}
	return toTasks(entries), nil
}

// Messages returns the comments of a bug in posting order.
func (c *Client) Messages(ctx context.Context, bugID int) ([]source.Message, error) {
	entries, err := c.collection(ctx, bugPath(bugID, "messages"))
	if err != nil {
		return nil, fmt.Errorf("get messages of bug %d: %w", bugID, err)
	}
	msgs := make([]source.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, source.Message{
			Content:   e.str("content"),
			Created:   e.timestamp("date_created"),
			Owner:     e.id("owner_link"),
			ChangeTag: e.str("http_etag"),
		})
	}
	return msgs, nil
}

// Activity returns the change log of a bug.
func (c *Client) Activity(ctx context.Context, bugID int) ([]source.Activity, error) {
	entries, err := c.collection(ctx, bugPath(bugID, "activity"))
	if err != nil {
		return nil, fmt.Errorf("get activity of bug %d: %w", bugID, err)
	}
	acts := make([]source.Activity, 0, len(entries))
	for _, e := range entries {
		acts = append(acts, source.Activity{
			WhatChanged: e.str("whatchanged"),
			OldValue:    e.str("oldvalue"),
			NewValue:    e.str("newvalue"),
			Changed:     e.timestamp("datechanged"),
			Person:      e.id("person_link"),
		})
	}
	return acts, nil
}

// Attachments returns the files attached to a bug. The author and date come
// from the message each attachment was posted with. An attachment whose
// message cannot be read is returned with Err set.
func (c *Client) Attachments(ctx context.Context, bugID int) ([]source.Attachment, error) {
	entries, err := c.collection(ctx, bugPath(bugID, "attachments"))
	if err != nil {
		return nil, fmt.Errorf("get attachments of bug %d: %w", bugID, err)
	}
	out := make([]source.Attachment, 0, len(entries))
	for _, e := range entries {
		a := source.Attachment{
			Title:    e.str("title"),
			DataLink: e.str("data_link"),
		}
		a.FileName = c.fileName(ctx, a.DataLink, a.Title)
		if link := e.str("message_link"); link != "" {
			msg, err := c.getEntry(ctx, link)
			if err != nil {
				a.Err = fmt.Errorf("get message of attachment %q: %w", a.Title, err)
			} else {
				a.Owner = msg.id("owner_link")
				a.Created = msg.timestamp("date_created")
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// OpenAttachment streams the payload of an attachment. The caller closes it.
func (c *Client) OpenAttachment(ctx context.Context, a source.Attachment) (io.ReadCloser, error) {
	if a.DataLink == "" {
		return nil, fmt.Errorf("attachment %q has no data link", a.Title)
	}
	body, err := c.doRequest(ctx, a.DataLink, "*/*")
	if err != nil {
		return nil, fmt.Errorf("download attachment %q: %w", a.Title, err)
	}
	return body, nil
}

// Duplicates returns the numbers of bugs marked as duplicates of bugID.
func (c *Client) Duplicates(ctx context.Context, bugID int) ([]int, error) {
	entries, err := c.collection(ctx, bugPath(bugID, "duplicates"))
	if err != nil {
		return nil, fmt.Errorf("get duplicates of bug %d: %w", bugID, err)
	}
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.integer("id"))
	}
	return ids, nil
}

// Person looks up a user by name.
func (c *Client) Person(ctx context.Context, name string) (source.Person, error) {
	e, err := c.getEntry(ctx, "~"+url.PathEscape(name))
	if err != nil {
		return source.Person{}, fmt.Errorf("get person %s: %w", name, err)
	}
	p := source.Person{
		Name:        e.str("name"),
		DisplayName: e.str("display_name"),
		HideEmail:   e.boolean("hide_email_addresses"),
	}
	if link := e.str("preferred_email_address_link"); link != "" && !p.HideEmail {
		email, err := c.getEntry(ctx, link)
		if err != nil {
			return source.Person{}, fmt.Errorf("get email of %s: %w", name, err)
		}
		p.PreferredEmail = email.str("email")
	}
	return p, nil
}

// Subscribers returns the names of everyone subscribed to the project.
func (c *Client) Subscribers(ctx context.Context) ([]string, error) {
	entries, err := c.collection(ctx, c.projectURL(url.Values{"ws.op": {"getSubscriptions"}}))
	if err != nil {
		return nil, fmt.Errorf("get subscriptions: %w", err)
	}
	seen := make(map[string]struct{}, len(entries))
	var names []string
	for _, e := range entries {
		name := e.id("subscriber_link")
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// Releases returns the published versions of the project.
func (c *Client) Releases(ctx context.Context) ([]source.Release, error) {
	entries, err := c.collection(ctx, url.PathEscape(c.Project)+"/releases")
	if err != nil {
		return nil, fmt.Errorf("get releases: %w", err)
	}
	out := make([]source.Release, 0, len(entries))
	for _, e := range entries {
		out = append(out, source.Release{
			Version:  e.str("version"),
			Released: e.timePtr("date_released"),
		})
	}
	return out, nil
}

// Specification returns the blueprint with the given name.
func (c *Client) Specification(ctx context.Context, name string) (source.Specification, error) {
	e, err := c.getEntry(ctx, c.projectURL(url.Values{"ws.op": {"getSpecification"}, "name": {name}}))
	if err != nil {
		return source.Specification{}, fmt.Errorf("get specification %s: %w", name, err)
	}
	if len(e) == 0 {
		return source.Specification{}, fmt.Errorf("get specification %s: %w", name, source.ErrNotFound)
	}
	return source.Specification{
		Name:       e.str("name"),
		Title:      e.str("title"),
		Summary:    e.str("summary"),
		Whiteboard: e.str("whiteboard"),
		WorkItems:  e.str("workitems_text"),
		Priority:   e.str("priority"),
		Owner:      e.id("owner_link"),
		Assignee:   e.id("assignee_link"),
		Created:    e.timestamp("date_created"),
		Attrs:      source.Attrs(e),
	}, nil
}

// Specifications returns the names of every blueprint of the project.
func (c *Client) Specifications(ctx context.Context) ([]string, error) {
	entries, err := c.collection(ctx, url.PathEscape(c.Project)+"/all_specifications")
	if err != nil {
		return nil, fmt.Errorf("get specifications: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if n := e.str("name"); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

func bugPath(id int, sub string) string {
	p := "bugs/" + strconv.Itoa(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func toTasks(entries []entry) []source.Task {
	tasks := make([]source.Task, 0, len(entries))
	for _, e := range entries {
		bugID, _ := strconv.Atoi(e.id("bug_link"))
		tasks = append(tasks, source.Task{
			BugID:      bugID,
			Target:     e.str("bug_target_name"),
			Status:     e.str("status"),
			Importance: e.str("importance"),
			Owner:      e.id("owner_link"),
			Assignee:   e.id("assignee_link"),
			Milestone:  e.id("milestone_link"),
			Created:    e.timestamp("date_created"),
			Updated:    e.timestamp("date_updated"),
			Attrs:      source.Attrs(e),
		})
	}
	return tasks
}
