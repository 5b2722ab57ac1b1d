package utils

import (
	"fmt"
	"strings"

	"journal-workflow-api/models"
)

// Request input is matched case-insensitively with spaces and dashes folded to
// underscores. Numeric codes are never accepted.

var (
	statusSynonyms = map[models.SubmissionStatus][]string{
		models.StatusSubmitted:        {"submitted", "new"},
		models.StatusUnderReview:      {"under_review", "in_review"},
		models.StatusRevisionRequired: {"revision_required", "revisions_required", "needs_revision"},
		models.StatusAccepted:         {"accepted"},
		models.StatusDeclined:         {"declined", "rejected"},
		models.StatusScheduled:        {"scheduled"},
		models.StatusPublished:        {"published"},
	}
	stageSynonyms = map[models.Stage][]string{
		models.StageSubmission:     {"submission"},
		models.StageInternalReview: {"internal_review"},
		models.StageExternalReview: {"external_review", "review"},
		models.StageCopyediting:    {"copyediting", "editing"},
		models.StageProduction:     {"production"},
	}

	statusAliases = buildAliasMap(statusSynonyms)
	stageAliases  = buildAliasMap(stageSynonyms)
)

func buildAliasMap[T ~string](synonyms map[T][]string) map[string]T {
	aliasMap := make(map[string]T)
	for canonical, aliases := range synonyms {
		aliasMap[normalizeCode(string(canonical))] = canonical
		for _, alias := range aliases {
			if normalized := normalizeCode(alias); normalized != "" {
				aliasMap[normalized] = canonical
			}
		}
	}
	return aliasMap
}

func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.NewReplacer(" ", "_", "-", "_").Replace(code)
	return code
}

func isNumeric(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func lookup[T ~string](aliases map[string]T, kind, raw string) (T, error) {
	normalized := normalizeCode(raw)
	if normalized == "" {
		return "", fmt.Errorf("%s is required", kind)
	}
	if isNumeric(normalized) {
		return "", fmt.Errorf("numeric %s codes are not supported: %q", kind, raw)
	}
	if v, ok := aliases[normalized]; ok {
		return v, nil
	}
	return "", fmt.Errorf("unknown %s %q", kind, raw)
}

// ParseSubmissionStatus maps request input to a submission status.
func ParseSubmissionStatus(raw string) (models.SubmissionStatus, error) {
	return lookup(statusAliases, "status", raw)
}

// ParseStage maps request input to a workflow stage.
func ParseStage(raw string) (models.Stage, error) {
	return lookup(stageAliases, "stage", raw)
}

func parseExact[T interface {
	~string
	Valid() bool
}](kind, raw string) (T, error) {
	normalized := normalizeCode(raw)
	if normalized == "" {
		return "", fmt.Errorf("%s is required", kind)
	}
	if isNumeric(normalized) {
		return "", fmt.Errorf("numeric %s codes are not supported: %q", kind, raw)
	}
	v := T(normalized)
	if !v.Valid() {
		return "", fmt.Errorf("unknown %s %q", kind, raw)
	}
	return v, nil
}

func ParseDecision(raw string) (models.Decision, error) {
	return parseExact[models.Decision]("decision", raw)
}

func ParseRecommendation(raw string) (models.Recommendation, error) {
	return parseExact[models.Recommendation]("recommendation", raw)
}

func ParseFileVersionType(raw string) (models.FileVersionType, error) {
	return parseExact[models.FileVersionType]("version type", raw)
}

// ParseRoundStatus accepts only the three round statuses.
func ParseRoundStatus(raw string) (models.ReviewRoundStatus, error) {
	normalized := normalizeCode(raw)
	switch s := models.ReviewRoundStatus(normalized); s {
	case models.RoundPendingReviewers, models.RoundPendingReviews, models.RoundCompleted:
		return s, nil
	}
	if normalized == "" {
		return "", fmt.Errorf("round status is required")
	}
	return "", fmt.Errorf("unknown round status %q", raw)
}

// OptionalStage parses a stage query parameter; an empty value yields nil.
func OptionalStage(raw string) (*models.Stage, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	stage, err := ParseStage(raw)
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// OptionalSubmissionStatus parses a status query parameter; an empty value yields nil.
func OptionalSubmissionStatus(raw string) (*models.SubmissionStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	status, err := ParseSubmissionStatus(raw)
	if err != nil {
		return nil, err
	}
	return &status, nil
}
