package clickup

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// maxTaskPages bounds subtask pagination.
const maxTaskPages = 100

// apiTask is the subset of a ClickUp task the adapter reads.
type apiTask struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	MarkdownDescription string  `json:"markdown_description"`
	Parent              *string `json:"parent"`
	List                struct {
		ID string `json:"id"`
	} `json:"list"`
}

func (t apiTask) toDomain() domain.Task {
	task := domain.Task{
		ID:          t.ID,
		ListID:      t.List.ID,
		Name:        t.Name,
		Description: t.MarkdownDescription,
	}
	if task.Description == "" {
		task.Description = t.Description
	}
	if t.Parent != nil {
		task.ParentID = *t.Parent
	}
	return task
}

// GetTask reads a task with its Markdown description.
func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var out apiTask
	err := c.do(ctx, request{
		op:     "get task " + taskID,
		method: http.MethodGet,
		path:   "task/" + taskID,
		query:  url.Values{"include_markdown_description": {"true"}},
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	task := out.toDomain()
	return &task, nil
}

// UpdateDescription replaces the task's description with markdown.
func (c *Client) UpdateDescription(ctx context.Context, taskID, markdown string) error {
	return c.do(ctx, request{
		op:     "update description of " + taskID,
		method: http.MethodPut,
		path:   "task/" + taskID,
		body:   map[string]string{"markdown_content": markdown},
	})
}

type taskPage struct {
	Tasks    []apiTask `json:"tasks"`
	LastPage bool      `json:"last_page"`
}

// ListSubtasks pages through the parent's list and keeps the direct children.
func (c *Client) ListSubtasks(ctx context.Context, parent *domain.Task) ([]domain.Task, error) {
	var subtasks []domain.Task
	for page := 0; page < maxTaskPages; page++ {
		var out taskPage
		err := c.do(ctx, request{
			op:     "list subtasks of " + parent.ID,
			method: http.MethodGet,
			path:   "list/" + parent.ListID + "/task",
			query: url.Values{
				"subtasks":                     {"true"},
				"include_closed":               {"true"},
				"include_markdown_description": {"true"},
				"page":                         {strconv.Itoa(page)},
			},
			out: &out,
		})
		if err != nil {
			return nil, err
		}

		for _, t := range out.Tasks {
			if t.Parent != nil && *t.Parent == parent.ID {
				subtasks = append(subtasks, t.toDomain())
			}
		}
		if out.LastPage || len(out.Tasks) == 0 {
			break
		}
	}
	return subtasks, nil
}

// CreateSubtask creates a task in the parent's list with parent set.
func (c *Client) CreateSubtask(ctx context.Context, sub domain.NewSubtask) (*domain.Task, error) {
	body := map[string]string{
		"name":   sub.Name,
		"parent": sub.ParentID,
	}
	if sub.Description != "" {
		body["markdown_content"] = sub.Description
	}

	var out apiTask
	err := c.do(ctx, request{
		op:     "create subtask " + strconv.Quote(sub.Name),
		method: http.MethodPost,
		path:   "list/" + sub.ListID + "/task",
		body:   body,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}

	task := out.toDomain()
	if task.ListID == "" {
		task.ListID = sub.ListID
	}
	if task.ParentID == "" {
		task.ParentID = sub.ParentID
	}
	if task.Description == "" {
		task.Description = sub.Description
	}
	return &task, nil
}
