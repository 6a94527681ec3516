// Package snackbar implements the notification queue behind a "big snackbar":
// one visible notification at a time, later requests queued in FIFO order,
// auto-dismiss after a timeout and a fixed grace period for the hide animation
// before the next request is shown. Presentation is delegated to a Renderer.
package snackbar
