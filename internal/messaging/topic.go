// nook-open-infrastructure - RapidPro SMS to pub/sub bridge
// Copyright 2026 Lark Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/larksystems/nook-open-infrastructure

package messaging

import "fmt"

// TopicPath returns the fully-namespaced topic name for logical within
// project, e.g. TopicPath("acme", "sms_from_rapidpro") ->
// "projects/acme/topics/acme-sms_from_rapidpro".
func TopicPath(project, logical string) string {
	return fmt.Sprintf("projects/%s/topics/%s-%s", project, project, logical)
}
