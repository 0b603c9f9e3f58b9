package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/radonlabs/clindoc/internal/core/domain"
)

// GroupingEngine incrementally assigns analyzed documents to report
// groups. It is deliberately conservative: same-hint joins are gated by
// the consistency validator, cross-hint joins always require user
// confirmation, and a blocked group is only ever cleared by an explicit
// resolution.
type GroupingEngine struct {
	rules domain.GroupingRules
}

func NewGroupingEngine(rules domain.GroupingRules) *GroupingEngine {
	return &GroupingEngine{rules: rules}
}

// Assign places doc into session's groups and returns the affected group
// key plus the action taken. Blank pages are discarded from grouping
// entirely; they neither join nor found a group.
func (e *GroupingEngine) Assign(session *domain.BatchSession, doc *domain.AnalyzedDocument) (string, domain.AssignAction) {
	if doc.Class == domain.ClassBlankPage || isBlankText(doc.VerbatimText, e.rules) {
		RemoveFromGroups(session, doc.FileID)
		return "", domain.ActionDiscardedBlank
	}

	// Membership that already exists (for example after a user
	// resolution) is final and short-circuits reassignment.
	if existing := memberGroup(session, doc.FileID); existing != nil {
		return existing.Key, domain.ActionJoinedExisting
	}

	hint := strings.TrimSpace(doc.GroupHint)
	if hint != "" {
		key := hintGroupKey(hint)
		if group := session.Group(key); group != nil {
			return e.joinSameHint(session, group, doc)
		}
	}

	// No group shares the hint. Look for a high-confidence match across
	// all groups before creating a singleton; never merge across hints
	// without the user confirming.
	if doc.HintSource != domain.FieldManual {
		if key, res := e.bestCrossHintCandidate(session, doc); key != "" && res.ShouldAsk {
			group := session.Group(key)
			group.Status = domain.GroupPendingConfirmation
			group.PendingFileID = doc.FileID
			group.PendingScore = res.Score
			group.SplitSignals = appendUnique(group.SplitSignals,
				fmt.Sprintf("possible match for %s: %s", doc.FileID, strings.Join(res.Reasons, ", ")))
			return key, domain.ActionAskUser
		}
	}

	key := singletonKey(doc, hint)
	session.Groups = append(session.Groups, domain.ReportGroup{
		Key:       key,
		MemberIDs: []string{doc.FileID},
		Status:    domain.GroupConsistent,
	})
	return key, domain.ActionCreatedNew
}

func (e *GroupingEngine) joinSameHint(session *domain.BatchSession, group *domain.ReportGroup, doc *domain.AnalyzedDocument) (string, domain.AssignAction) {
	if group.Status != domain.GroupConsistent {
		// A contested group accepts no automatic joins; the document
		// waits in its own group until the human decides.
		key := singletonKey(doc, "")
		session.Groups = append(session.Groups, domain.ReportGroup{
			Key:       key,
			MemberIDs: []string{doc.FileID},
			Status:    domain.GroupConsistent,
		})
		return key, domain.ActionCreatedNew
	}

	candidate := append(e.groupDocuments(session, group), doc)
	report := ValidateGroup(candidate, e.rules)
	if report.Blocked {
		group.Status = domain.GroupBlocked
		group.BlockReasons = report.Reasons
		group.PendingFileID = doc.FileID
		return group.Key, domain.ActionBlockedPendingUser
	}

	insertMember(session, group, doc.FileID)
	group.SplitSignals = report.SplitSignals
	return group.Key, domain.ActionJoinedExisting
}

// bestCrossHintCandidate scores doc against every member of every
// consistent group and returns the strongest candidate. Only prior
// reports are compared; other classes carry too little identity signal
// for a fuzzy match.
func (e *GroupingEngine) bestCrossHintCandidate(session *domain.BatchSession, doc *domain.AnalyzedDocument) (string, SimilarityResult) {
	if doc.Class != domain.ClassPriorReport {
		return "", SimilarityResult{}
	}

	var bestKey string
	var best SimilarityResult
	for i := range session.Groups {
		group := &session.Groups[i]
		if group.Status != domain.GroupConsistent {
			continue
		}
		for _, member := range e.groupDocuments(session, group) {
			if member.Class != domain.ClassPriorReport {
				continue
			}
			res := scoreSimilarity(doc, member, e.rules)
			if res.Score > best.Score {
				best = res
				bestKey = group.Key
			}
		}
	}
	return bestKey, best
}

// Resolve applies an explicit user decision to a blocked or pending
// group. confirm-same merges the pending document in and clears the
// block; confirm-different spins it off into its own group.
func (e *GroupingEngine) Resolve(session *domain.BatchSession, groupKey string, resolution domain.Resolution) error {
	group := session.Group(groupKey)
	if group == nil {
		return domain.WrapError(domain.ErrGroupNotFound, "resolve group", fmt.Errorf("key %q", groupKey))
	}
	if group.PendingFileID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "resolve group", fmt.Errorf("group %q has no pending document", groupKey))
	}

	pendingID := group.PendingFileID
	group.PendingFileID = ""
	group.PendingScore = 0

	switch resolution {
	case domain.ResolveConfirmSame:
		insertMember(session, group, pendingID)
		group.Status = domain.GroupConsistent
		group.BlockReasons = nil
	case domain.ResolveConfirmDifferent:
		group.Status = domain.GroupConsistent
		group.BlockReasons = nil
		session.Groups = append(session.Groups, domain.ReportGroup{
			Key:       "file::" + pendingID,
			MemberIDs: []string{pendingID},
			Status:    domain.GroupConsistent,
		})
	default:
		return domain.WrapError(domain.ErrInvalidInput, "resolve group", fmt.Errorf("unknown resolution %q", resolution))
	}
	return nil
}

// Reassign recomputes the placement of a single document after the user
// overrode its hint or classification. Membership the user confirmed
// elsewhere is untouched; only this document moves.
func (e *GroupingEngine) Reassign(session *domain.BatchSession, doc *domain.AnalyzedDocument) (string, domain.AssignAction) {
	RemoveFromGroups(session, doc.FileID)
	return e.Assign(session, doc)
}

func (e *GroupingEngine) groupDocuments(session *domain.BatchSession, group *domain.ReportGroup) []*domain.AnalyzedDocument {
	out := make([]*domain.AnalyzedDocument, 0, len(group.MemberIDs))
	for _, id := range group.MemberIDs {
		if doc := session.Document(id); doc != nil {
			out = append(out, doc)
		}
	}
	return out
}

// RemoveFromGroups strips every membership and pending reference of
// fileID and drops groups left empty.
func RemoveFromGroups(session *domain.BatchSession, fileID string) {
	kept := session.Groups[:0]
	for i := range session.Groups {
		group := session.Groups[i]
		members := group.MemberIDs[:0]
		for _, id := range group.MemberIDs {
			if id != fileID {
				members = append(members, id)
			}
		}
		group.MemberIDs = members
		if group.PendingFileID == fileID {
			group.PendingFileID = ""
			group.PendingScore = 0
			if group.Status == domain.GroupPendingConfirmation {
				group.Status = domain.GroupConsistent
			}
		}
		if len(group.MemberIDs) > 0 || group.PendingFileID != "" {
			kept = append(kept, group)
		}
	}
	session.Groups = kept
}

// SortGroupMembers re-derives per-group member order from the files'
// order indices. Completion order never leaks into group order.
func SortGroupMembers(session *domain.BatchSession) {
	index := make(map[string]int, len(session.Files))
	for _, f := range session.Files {
		index[f.ID] = f.OrderIndex
	}
	for i := range session.Groups {
		members := session.Groups[i].MemberIDs
		sort.SliceStable(members, func(a, b int) bool {
			return index[members[a]] < index[members[b]]
		})
	}
}

func memberGroup(session *domain.BatchSession, fileID string) *domain.ReportGroup {
	for i := range session.Groups {
		if session.Groups[i].Contains(fileID) {
			return &session.Groups[i]
		}
	}
	return nil
}

func insertMember(session *domain.BatchSession, group *domain.ReportGroup, fileID string) {
	if group.Contains(fileID) {
		return
	}
	group.MemberIDs = append(group.MemberIDs, fileID)
	SortGroupMembers(session)
}

func hintGroupKey(hint string) string {
	return "hint::" + normalizeIdentity(hint)
}

func singletonKey(doc *domain.AnalyzedDocument, hint string) string {
	if hint != "" {
		return hintGroupKey(hint)
	}
	return "file::" + doc.FileID
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
