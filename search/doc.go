// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package search pages through a user's media for inline queries.
//
// The Searcher turns the free text of an inline query into prefix terms,
// asks the media index for one page of ranked results, and computes the
// opaque offset the client echoes back to fetch the next page:
//
//	page, err := searcher.Page(ctx, userID, "red ca", "")
//	// page.Items: up to 15 items, best match first
//	// page.NextOffset: "15", or "" when there is nothing more
//
// Offsets are decimal strings because inline query clients treat them as
// opaque tokens.
package search
