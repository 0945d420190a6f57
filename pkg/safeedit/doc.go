// Package safeedit provides a high-level library API for rewriting files in a
// safeedit workspace through a language-generation model.
//
// Every rewrite backs the file up first, rejects generated content that
// matches the dangerous-pattern denylist or fails the configured syntax
// checker, and records written changes in the operation log so they can be
// rolled back.
//
// # Concurrency Safety
//
//   - A Client processes files strictly one after another. Improve, ImproveAll
//     and Rollback must not be called concurrently on the same Client.
//
//   - Separate processes may share a workspace: operation log appends are
//     serialized with an advisory file lock. File rewrites themselves are not
//     coordinated, so two processes must not rewrite the same file at once.
//
// # Usage
//
//	client, err := safeedit.OpenOrInit(dir, safeedit.Options{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	out := client.Improve(ctx, "js/auth.js", safeedit.ImproveOptions{Kind: "security"})
//	if !out.Success {
//	    log.Printf("%s: %s", out.FilePath, out.Message)
//	}
package safeedit
