/*
Copyright 2024 Taqo Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

// Realtime channel layout. Every spot mutation is published twice: once on
// the spot's own document channel and once on the available-set channel,
// which carries the full current matching set rather than a diff.
const (
	AvailableChannel = "spots:available"

	// GoneMessage is the sentinel published on a document channel when the
	// spot no longer exists for watchers.
	GoneMessage = "gone"
)

// SpotChannel is the document channel for one spot. The same key addresses
// the snapshot cache entry watchers replay on subscribe.
func SpotChannel(spotID string) string {
	return "spots:doc:" + spotID
}
