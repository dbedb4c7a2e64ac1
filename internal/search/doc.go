// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search filters a session collection and finds matching messages.
//
// Everything here is a pure function of its input: nothing is indexed or
// cached, and the input slice is never modified.
//
// # Key Types
//
//   - Spec: The filter dimensions; unset dimensions match everything
//   - Hit: One matching message and the session it belongs to
//
// # Usage
//
//	spec, err := search.Parse("tag:go role:assistant goroutine leak")
//	visible := search.Filter(store.List(), spec)
//
//	for _, hit := range search.SearchMessages(sessions, "deadline") {
//	    fmt.Println(hit.Session.Title, hit.Message.Preview(60))
//	}
package search
