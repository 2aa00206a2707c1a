package service

import (
	"ReqKeeper/internal/metrics"
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxMentionSuggestions = 8

// @email, @local.part, @local
var mentionRe = regexp.MustCompile(`@(\w+(?:\.\w+)*@?\w*\.?\w*)`)

// CommentNode — комментарий с вложенными ответами.
type CommentNode struct {
	model.RequirementComment
	Replies []*CommentNode `json:"replies"`
}

// MentionSuggestion — кандидат для автодополнения @упоминания.
type MentionSuggestion struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// CommentService — обсуждение версий требований.
type CommentService struct {
	repos    *repo.Repositories
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
}

func NewCommentService(repos *repo.Repositories, notifier Notifier, m *metrics.Metrics, logger *zap.SugaredLogger) *CommentService {
	return &CommentService{repos: repos, notifier: notifier, metrics: m, logger: logger}
}

func validateCommentText(text string) error {
	if err := validation.Validate(text, validation.Required, validation.Length(1, 5000)); err != nil {
		return invalidf("text: %v", err)
	}
	return nil
}

// Add создаёт комментарий. Родитель должен быть неудалённым комментарием той же версии.
func (s *CommentService) Add(ctx context.Context, versionID, authorID int64, text string, parentID *int64) (*model.RequirementComment, error) {
	sc, err := versionFor(ctx, s.repos, versionID, authorID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if err := validateCommentText(text); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.repos.Comments.GetByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidParent
			}
			return nil, err
		}
		if parent.IsDeleted || parent.VersionID != versionID {
			return nil, ErrInvalidParent
		}
	}

	c := &model.RequirementComment{
		VersionID:       versionID,
		AuthorID:        authorID,
		Text:            text,
		ParentCommentID: parentID,
	}
	if err := s.repos.Comments.Create(ctx, c); err != nil {
		return nil, err
	}
	if stored, err := s.repos.Comments.GetByID(ctx, c.ID); err == nil {
		c = stored
	}

	if s.notifier != nil {
		notifySafely(s.logger, s.metrics, "comment", func() error {
			return s.notifier.CommentAdded(ctx, sc.project, sc.version, c, authorID)
		})
	}
	return c, nil
}

// Edit меняет текст. Править может только автор.
func (s *CommentService) Edit(ctx context.Context, commentID, editorID int64, text string) (*model.RequirementComment, error) {
	c, err := s.repos.Comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, notFound("comment", err)
	}
	if _, err := versionFor(ctx, s.repos, c.VersionID, editorID); err != nil {
		return nil, err
	}
	if c.AuthorID != editorID {
		return nil, ErrAccessDenied
	}
	if c.IsDeleted {
		return nil, invalidf("comment is deleted")
	}
	text = strings.TrimSpace(text)
	if err := validateCommentText(text); err != nil {
		return nil, err
	}

	if err := s.repos.Comments.UpdateText(ctx, commentID, text); err != nil {
		return nil, notFound("comment", err)
	}
	updated, err := s.repos.Comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, notFound("comment", err)
	}
	return updated, nil
}

// SoftDelete скрывает комментарий: автор или владелец проекта. Ответы остаются.
func (s *CommentService) SoftDelete(ctx context.Context, commentID, actorID int64) error {
	c, err := s.repos.Comments.GetByID(ctx, commentID)
	if err != nil {
		return notFound("comment", err)
	}
	sc, err := versionFor(ctx, s.repos, c.VersionID, actorID)
	if err != nil {
		return err
	}
	if c.AuthorID != actorID && !sc.project.IsOwner(actorID) {
		return ErrAccessDenied
	}
	if c.IsDeleted {
		return nil
	}
	return s.repos.Comments.SoftDelete(ctx, commentID)
}

// ListThread возвращает дерево неудалённых комментариев версии.
func (s *CommentService) ListThread(ctx context.Context, versionID, userID int64) ([]*CommentNode, error) {
	if _, err := versionFor(ctx, s.repos, versionID, userID); err != nil {
		return nil, err
	}
	list, err := s.repos.Comments.ListByVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return buildThread(list), nil
}

// buildThread собирает дерево из плоского списка. Ответ, чей родитель скрыт,
// поднимается на верхний уровень.
func buildThread(list []model.RequirementComment) []*CommentNode {
	nodes := make(map[int64]*CommentNode, len(list))
	for i := range list {
		nodes[list[i].ID] = &CommentNode{RequirementComment: list[i], Replies: []*CommentNode{}}
	}

	roots := []*CommentNode{}
	for i := range list {
		n := nodes[list[i].ID]
		if pid := list[i].ParentCommentID; pid != nil {
			if parent, ok := nodes[*pid]; ok {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// MentionSuggestions — участники проекта для автодополнения, отфильтрованные по q.
func (s *CommentService) MentionSuggestions(ctx context.Context, projectID, userID int64, q string) ([]MentionSuggestion, error) {
	p, err := projectFor(ctx, s.repos.Projects, projectID, userID)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))

	seen := map[int64]bool{}
	out := []MentionSuggestion{}
	for _, u := range p.Members() {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		name := u.DisplayName()
		if q != "" && !strings.Contains(strings.ToLower(name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, MentionSuggestion{ID: u.ID, Email: u.Email, Username: name})
	}

	slices.SortFunc(out, func(a, b MentionSuggestion) int {
		return strings.Compare(a.Username, b.Username)
	})
	if len(out) > maxMentionSuggestions {
		out = out[:maxMentionSuggestions]
	}
	return out, nil
}

// ParseMentions извлекает токены @упоминаний из текста (без "@", в нижнем регистре).
func ParseMentions(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		token := strings.ToLower(strings.TrimRight(m[1], ".@"))
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, token)
	}
	return out
}

// resolveMentions: точное совпадение email, иначе первый участник, чей email начинается с токена.
// Нераспознанные токены отбрасываются.
func resolveMentions(members []model.User, tokens []string) []model.User {
	var out []model.User
	seen := map[int64]bool{}
	for _, token := range tokens {
		var match *model.User
		for i := range members {
			if strings.EqualFold(members[i].Email, token) {
				match = &members[i]
				break
			}
		}
		if match == nil {
			for i := range members {
				if strings.HasPrefix(strings.ToLower(members[i].Email), token) {
					match = &members[i]
					break
				}
			}
		}
		if match != nil && !seen[match.ID] {
			seen[match.ID] = true
			out = append(out, *match)
		}
	}
	return out
}
