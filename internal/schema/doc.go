// Package schema defines the JSON document synchronized between a dayline
// client and its remote store.
//
// # Overview
//
// A user's data is a single document plus an append-only collection of
// daily records:
//
//	{
//	  "tasks":             [Task...],
//	  "groups":            [TaskGroup...],
//	  "milestones":        [Milestone...],
//	  "scheduleTemplates": {"workday": [TimeSlot...], "saturday": [...], "sunday": [...]}
//	}
//
// Daily records live outside the document, keyed by "{date}-{taskId}":
//
//	{
//	  "id": "2025-01-10-default-exercise",
//	  "date": "2025-01-10",
//	  "taskId": "default-exercise",
//	  "title": "Exercise",
//	  "category": "health",
//	  "status": "completed",
//	  "createdAt": "2025-01-10T07:36:29Z"
//	}
//
// # Updates
//
// Writers send a PartialDocument. Only the fields it carries are replaced,
// the rest of the stored document is left as is:
//
//	tasks := []schema.Task{...}
//	err := store.Save(ctx, userID, schema.PartialDocument{Tasks: &tasks})
//
// # Join keys
//
//   - Task.Category references TaskGroup.Key
//   - TimeSlot.GroupKey references TaskGroup.Key
//   - TimeSlot.AssignedTaskIDs reference Task.ID
//
// A slot whose group key is unknown is kept in storage but hidden by
// ScheduleTemplates.VisibleSlots, so groups created on another device
// survive a round trip through an older client.
//
// Older document shapes are handled by the migrate package; nothing in
// this package understands them.
package schema
