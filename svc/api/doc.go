// Package api is the public HTTP surface: notification enqueueing and job
// history, rate limit status, analysis status reads and writes, health
// probes and the websocket endpoint.
//
// Routes:
//
//	POST  /api/notifications
//	GET   /api/notifications/jobs/{id}
//	GET   /api/notifications/history?status=&limit=
//	GET   /api/rate-limit/status?limitType=&analysisId=
//	GET   /api/rate-limit/info
//	POST  /api/analysis                      cv_upload limit
//	GET   /api/analysis/{id}/status
//	GET   /api/analysis/{id}/results         question_refresh limit with ?refresh=true
//	POST  /api/analysis/{id}/cancel
//	PATCH /api/analysis/{id}
//	GET   /api/health, /api/status
//	GET   /ws
//
// Errors are JSON objects of the form {"success": false, "error": "..."}.
package api
