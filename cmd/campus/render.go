package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"campuscreatives/internal/engagement"
	"campuscreatives/internal/models"
	"campuscreatives/internal/repository"
)

const timeLayout = "2006-01-02 15:04"

// describeError turns a client error into the banner shown to the user.
func describeError(err error) string {
	var msg string
	switch models.CodeOf(err) {
	case models.CodeNetworkUnavailable:
		msg = "Cannot reach the campus server. Check your connection and try again."
	case models.CodeSessionExpired:
		msg = "Your session has expired. Run `campus login` again."
	case models.CodeUnauthenticated:
		msg = "Not signed in: " + appMessage(err)
	case models.CodeValidation:
		msg = "Invalid input: " + appMessage(err)
	case models.CodeNotFound:
		msg = appMessage(err)
	case models.CodeAuthorizationDenied:
		msg = "Not allowed: " + appMessage(err)
	default:
		msg = "Error: " + err.Error()
	}
	return msg
}

func appMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func sourceBanner(src repository.Source) string {
	switch {
	case src == repository.SourceCache:
		return "Showing cached content."
	case src == repository.SourceOffline:
		return "Saved on this device only. It has not reached the server yet."
	case src.Degraded():
		return "Offline: the campus server could not be reached, showing sample content."
	default:
		return ""
	}
}

func (a *App) banner(src repository.Source) {
	if b := sourceBanner(src); b != "" {
		a.printf("! %s\n", b)
	}
}

func postLine(v engagement.PostView) string {
	var flags []string
	if v.Liked {
		flags = append(flags, "liked")
	}
	if v.Offline {
		flags = append(flags, "offline")
	}
	line := fmt.Sprintf("[%s] %s (%s) by %s  likes:%d comments:%d",
		v.ID, v.Title, v.Category().Label(), authorOf(v.Post), v.LikesCount, v.CommentsCount)
	if len(flags) > 0 {
		line += "  (" + strings.Join(flags, ", ") + ")"
	}
	return line
}

func authorOf(p models.Post) string {
	if p.AuthorName == "" {
		return "unknown"
	}
	return p.AuthorName
}

func (a *App) printPost(v engagement.PostView) {
	a.printf("%s\n", postLine(v))
	a.printf("Posted %s\n", v.CreatedAt.Local().Format(timeLayout))
	if len(v.Tags) > 0 {
		a.printf("Tags: %s\n", strings.Join(v.Tags, ", "))
	}
	if v.Image != nil {
		a.printf("Image: %s\n", *v.Image)
	}
	a.printf("\n%s\n", v.Content)
}

func (a *App) printComments(comments []models.Comment) {
	if len(comments) == 0 {
		a.printf("No comments yet.\n")
		return
	}
	for _, c := range comments {
		a.printf("[%s] %s, %s: %s\n", c.ID, c.AuthorName, relative(a.now(), c.CreatedAt), c.Content)
	}
}

func relative(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
