/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrInvalidPhase        = errors.New("action not allowed in the current phase")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrDuplicateSubmission = errors.New("answers already submitted this round")
	ErrAlreadyVoted        = errors.New("answer already decided")
	ErrAlreadyInRoom       = errors.New("already seated in a room")
	ErrUnknownAnswer       = errors.New("no such answer this round")
	ErrInvalidMessage      = errors.New("malformed message")
	ErrScoringFailed       = errors.New("scoring failed")
)

// reasons maps each sentinel to the stable string clients switch on.
var reasons = []struct {
	err    error
	reason string
}{
	{ErrRoomNotFound, "RoomNotFound"},
	{ErrInvalidPhase, "InvalidPhase"},
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrDuplicateSubmission, "DuplicateSubmission"},
	{ErrAlreadyVoted, "AlreadyVoted"},
	{ErrAlreadyInRoom, "AlreadyInRoom"},
	{ErrUnknownAnswer, "UnknownAnswer"},
	{ErrInvalidMessage, "InvalidMessage"},
	{ErrScoringFailed, "ScoringFailed"},
}

func reasonFor(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}

	return "Internal"
}

func newErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Reason:  reasonFor(err),
		Message: err.Error(),
	}
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
