package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
	"github.com/rodpglo1956/GloJohnStocky/internal/github"
)

// RepoHost is the source-hosting surface the repo tools need. *github.Client
// satisfies it; tests substitute a fake.
type RepoHost interface {
	GetFile(ctx context.Context, owner, repo, path string) (github.File, error)
	ListDir(ctx context.Context, owner, repo, path string) ([]github.Entry, error)
	PutFile(ctx context.Context, owner, repo, path, content, message, sha string) (string, error)
	DeleteFile(ctx context.Context, owner, repo, path, message, sha string) error
}

// RepoTools exposes a single owner/repo as the bot's notebook. Updates and
// deletes require the blob sha from a prior read, so concurrent edits fail
// loudly instead of overwriting each other.
func RepoTools(host RepoHost, owner, repo string) []Definition {
	return []Definition{
		{
			Spec: anthropic.Tool{
				Name:        "read_file",
				Description: fmt.Sprintf("Read a file from the %s/%s repository. Returns the content and the blob sha needed for updates.", owner, repo),
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"path": strProp("File path within the repository."),
				}, "path"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				path, err := requireString(input, "path")
				if err != nil {
					return "", err
				}
				f, err := host.GetFile(ctx, owner, repo, path)
				if err != nil {
					return "", fmt.Errorf("reading %s: %w", path, err)
				}
				return fmt.Sprintf("sha: %s\n\n%s", f.SHA, f.Content), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "write_file",
				Description: fmt.Sprintf("Create or update a file in the %s/%s repository. Updating an existing file requires the sha from read_file.", owner, repo),
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"path":    strProp("File path within the repository."),
					"content": strProp("Full new file content."),
					"message": strProp("Commit message. Defaults to a generic note."),
					"sha":     strProp("Blob sha of the current file when updating. Omit when creating."),
				}, "path", "content"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				path, err := requireString(input, "path")
				if err != nil {
					return "", err
				}
				content, ok := input["content"].(string)
				if !ok {
					return "", fmt.Errorf("content is required")
				}
				message := stringArg(input, "message")
				if message == "" {
					message = "Update " + path
				}
				commit, err := host.PutFile(ctx, owner, repo, path, content, message, stringArg(input, "sha"))
				if err != nil {
					return "", fmt.Errorf("writing %s: %w", path, err)
				}
				return fmt.Sprintf("Committed %s (%s)", path, commit), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "list_dir",
				Description: fmt.Sprintf("List a directory in the %s/%s repository.", owner, repo),
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"path": strProp("Directory path. Empty for the repository root."),
				}),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				path := stringArg(input, "path")
				entries, err := host.ListDir(ctx, owner, repo, path)
				if err != nil {
					return "", fmt.Errorf("listing %s: %w", path, err)
				}
				if len(entries) == 0 {
					return "Directory is empty.", nil
				}
				var b strings.Builder
				for _, e := range entries {
					if e.Type == "dir" {
						fmt.Fprintf(&b, "%s/\n", e.Path)
					} else {
						fmt.Fprintf(&b, "%s (%d bytes)\n", e.Path, e.Size)
					}
				}
				return b.String(), nil
			},
		},
		{
			Spec: anthropic.Tool{
				Name:        "delete_file",
				Description: fmt.Sprintf("Delete a file from the %s/%s repository. Requires the sha from read_file.", owner, repo),
				InputSchema: objSchema(map[string]anthropic.SchemaProperty{
					"path":    strProp("File path within the repository."),
					"sha":     strProp("Blob sha of the current file."),
					"message": strProp("Commit message. Defaults to a generic note."),
				}, "path", "sha"),
			},
			Handler: func(ctx context.Context, caller Caller, input map[string]any) (string, error) {
				path, err := requireString(input, "path")
				if err != nil {
					return "", err
				}
				sha, err := requireString(input, "sha")
				if err != nil {
					return "", err
				}
				message := stringArg(input, "message")
				if message == "" {
					message = "Delete " + path
				}
				if err := host.DeleteFile(ctx, owner, repo, path, message, sha); err != nil {
					return "", fmt.Errorf("deleting %s: %w", path, err)
				}
				return fmt.Sprintf("Deleted %s", path), nil
			},
		},
	}
}
