// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app ties rigchat's components together.
//
// An App owns the configuration, the session store, the completion client,
// the file ingestor and the storage backend, along with the selected
// session. Nothing here is global: the CLI builds one App and passes it
// around.
//
// # Sending
//
// Send appends the user's message, requests a completion (streamed or
// buffered per config) and appends the reply. Sends to the same session
// are serialized, so a second send waits for the first exchange to finish
// and sees it in its history.
//
// # Usage
//
//	a, err := app.New(ctx, app.Options{Config: cfg})
//	if err != nil {
//	    return err
//	}
//	defer a.Close(ctx)
//
//	reply, err := a.Send(ctx, "Explain goroutines", nil, func(delta string) {
//	    fmt.Print(delta)
//	})
package app
