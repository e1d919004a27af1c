package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"campuscreatives/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	maxTitleLength = 200
	maxImageBytes  = 5 << 20
	defaultLimit   = 10
	maxLimit       = 100
)

const msgForbidden = "You do not have permission to perform this action."

type countRow struct {
	PostID uint
	N      int
}

// present converts records into the wire representation with author names
// and like/comment counts filled in.
func (h *Handlers) present(c *fiber.Ctx, records []PostRecord) ([]models.Post, error) {
	out := make([]models.Post, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}
	ctx := c.UserContext()

	ids := make([]uint, 0, len(records))
	authorIDs := make([]uint, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		authorIDs = append(authorIDs, r.AuthorID)
	}

	names, err := h.usernames(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	likes, err := h.countBy(ctx, &LikeRecord{}, ids)
	if err != nil {
		return nil, err
	}
	comments, err := h.countBy(ctx, &CommentRecord{}, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		author := int64(r.AuthorID)
		p := models.Post{
			ID:            models.PostID(fmt.Sprint(r.ID)),
			Title:         r.Title,
			Content:       r.Content,
			PostType:      models.PostType(r.PostType),
			Author:        &author,
			AuthorName:    names[r.AuthorID],
			LikesCount:    likes[r.ID],
			CommentsCount: comments[r.ID],
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
			Tags:          models.NormalizeTags(strings.Split(r.Tags, ",")),
		}
		if len(r.ImageData) > 0 {
			image := fmt.Sprintf("%s/api/media/posts/%d/", c.BaseURL(), r.ID)
			p.Image = &image
		}
		out = append(out, p)
	}
	return out, nil
}

func (h *Handlers) usernames(ctx context.Context, ids []uint) (map[uint]string, error) {
	var users []UserRecord
	if err := h.db.WithContext(ctx).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

func (h *Handlers) countBy(ctx context.Context, model any, postIDs []uint) (map[uint]int, error) {
	var rows []countRow
	err := h.db.WithContext(ctx).Model(model).
		Select("post_id, count(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	return counts, nil
}

func (h *Handlers) findPost(c *fiber.Ctx) (*PostRecord, error) {
	id, ok := paramID(c)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	var post PostRecord
	if err := h.db.WithContext(c.UserContext()).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (h *Handlers) postLookupError(c *fiber.Ctx, operation string, err error) error {
	if isNotFound(err) {
		return respondWithError(c, fiber.StatusNotFound, "Not found.")
	}
	return h.internalError(c, operation, err)
}

// ListPosts handles GET /api/posts/. It filters by post_type and search and
// returns a plain list unless limit is given, in which case the body is paginated.
func (h *Handlers) ListPosts(c *fiber.Ctx) error {
	q := h.db.WithContext(c.UserContext()).Model(&PostRecord{})

	if pt := strings.TrimSpace(c.Query("post_type")); pt != "" && pt != models.FilterAll {
		canonical := models.NormalizePostType(pt)
		if canonical == models.PostTypePhotography {
			q = q.Where("post_type IN ?", []string{"photography", "photo"})
		} else {
			q = q.Where("post_type = ?", string(canonical))
		}
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("title LIKE ? OR content LIKE ?", like, like)
	}

	q = q.Session(&gorm.Session{})

	paged := c.Query("limit") != ""
	var total int64
	if paged {
		if err := q.Count(&total).Error; err != nil {
			return h.internalError(c, "list posts", err)
		}
		limit := c.QueryInt("limit", defaultLimit)
		if limit <= 0 || limit > maxLimit {
			limit = defaultLimit
		}
		offset := c.QueryInt("offset", 0)
		if offset < 0 {
			offset = 0
		}
		q = q.Offset(offset).Limit(limit)
	}

	var records []PostRecord
	if err := q.Order("created_at desc").Order("id desc").Find(&records).Error; err != nil {
		return h.internalError(c, "list posts", err)
	}
	posts, err := h.present(c, records)
	if err != nil {
		return h.internalError(c, "list posts", err)
	}
	if paged {
		return c.JSON(fiber.Map{"count": total, "results": posts})
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id/. The post embeds its comments.
func (h *Handlers) GetPost(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "get post", err)
	}
	posts, err := h.present(c, []PostRecord{*record})
	if err != nil {
		return h.internalError(c, "get post", err)
	}
	post := posts[0]
	if post.Comments, err = h.commentsFor(c.UserContext(), record.ID); err != nil {
		return h.internalError(c, "get post", err)
	}
	return c.JSON(post)
}

type postPayload struct {
	title, content, postType string
	tags                     []string
}

// parsePostPayload reads a post from JSON or from the multipart create form.
// Tags may be a list or a comma-separated string.
func parsePostPayload(c *fiber.Ctx) (postPayload, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return postPayload{
			title:    c.FormValue("title"),
			content:  c.FormValue("content"),
			postType: c.FormValue("post_type"),
			tags:     models.NormalizeTags(strings.Split(c.FormValue("tags"), ",")),
		}, nil
	}
	var in models.Post
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return postPayload{}, err
	}
	return postPayload{
		title:    in.Title,
		content:  in.Content,
		postType: string(in.PostType),
		tags:     in.Tags,
	}, nil
}

func (p *postPayload) validate() map[string]string {
	fields := map[string]string{}
	p.title = strings.TrimSpace(p.title)
	p.content = strings.TrimSpace(p.content)
	switch {
	case p.title == "":
		fields["title"] = "This field may not be blank."
	case len([]rune(p.title)) > maxTitleLength:
		fields["title"] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength)
	}
	if p.content == "" {
		fields["content"] = "This field may not be blank."
	}
	pt := strings.ToLower(strings.TrimSpace(p.postType))
	switch {
	case pt == "":
		p.postType = string(models.PostTypeOther)
	case pt == "photo" || string(models.NormalizePostType(pt)) == pt:
		p.postType = pt
	default:
		fields["post_type"] = fmt.Sprintf("%q is not a valid choice.", p.postType)
	}
	return fields
}

func readImage(c *fiber.Ctx) ([]byte, string, map[string]string, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, "", nil, nil
	}
	fh, err := c.FormFile("image")
	if err != nil {
		// No file part.
		return nil, "", nil, nil
	}
	if fh.Size > maxImageBytes {
		return nil, "", map[string]string{"image": "Image file too large ( > 5MB )"}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, "", nil, err
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", map[string]string{"image": "Upload a valid image."}, nil
	}
	return data, contentType, nil, nil
}

// CreatePost handles POST /api/posts/ with a JSON or multipart body.
func (h *Handlers) CreatePost(c *fiber.Ctx) error {
	payload, err := parsePostPayload(c)
	if err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if fields := payload.validate(); len(fields) > 0 {
		return respondWithFieldErrors(c, fields)
	}
	data, contentType, fields, err := readImage(c)
	if err != nil {
		return h.internalError(c, "create post", err)
	}
	if len(fields) > 0 {
		return respondWithFieldErrors(c, fields)
	}

	record := PostRecord{
		Title:     payload.title,
		Content:   payload.content,
		PostType:  payload.postType,
		AuthorID:  currentUser(c).UserID(),
		Tags:      strings.Join(payload.tags, ","),
		ImageData: data,
		ImageType: contentType,
	}
	if err := h.db.WithContext(c.UserContext()).Create(&record).Error; err != nil {
		return h.internalError(c, "create post", err)
	}
	posts, err := h.present(c, []PostRecord{record})
	if err != nil {
		return h.internalError(c, "create post", err)
	}
	return c.Status(fiber.StatusCreated).JSON(posts[0])
}

func canModify(claims *Claims, authorID uint) bool {
	return claims != nil && (claims.IsStaff || claims.UserID() == authorID)
}

// UpdatePost handles PUT /api/posts/:id/. Only the author or staff may edit.
func (h *Handlers) UpdatePost(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "update post", err)
	}
	if !canModify(currentUser(c), record.AuthorID) {
		return respondWithError(c, fiber.StatusForbidden, msgForbidden)
	}

	payload, err := parsePostPayload(c)
	if err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if fields := payload.validate(); len(fields) > 0 {
		return respondWithFieldErrors(c, fields)
	}

	record.Title = payload.title
	record.Content = payload.content
	record.PostType = payload.postType
	record.Tags = strings.Join(payload.tags, ",")
	if err := h.db.WithContext(c.UserContext()).Save(record).Error; err != nil {
		return h.internalError(c, "update post", err)
	}
	posts, err := h.present(c, []PostRecord{*record})
	if err != nil {
		return h.internalError(c, "update post", err)
	}
	return c.JSON(posts[0])
}

// DeletePost handles DELETE /api/posts/:id/ and removes the post's likes and comments with it.
func (h *Handlers) DeletePost(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "delete post", err)
	}
	if !canModify(currentUser(c), record.AuthorID) {
		return respondWithError(c, fiber.StatusForbidden, msgForbidden)
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", record.ID).Delete(&LikeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", record.ID).Delete(&CommentRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(record).Error
	})
	if err != nil {
		return h.internalError(c, "delete post", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like/ and toggles the caller's like.
func (h *Handlers) LikePost(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "like post", err)
	}
	userID := currentUser(c).UserID()

	status := models.LikeStatusLiked
	var count int64
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", record.ID, userID).Delete(&LikeRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			status = models.LikeStatusUnliked
		} else if err := tx.Create(&LikeRecord{PostID: record.ID, UserID: userID}).Error; err != nil {
			return err
		}
		return tx.Model(&LikeRecord{}).Where("post_id = ?", record.ID).Count(&count).Error
	})
	if err != nil {
		return h.internalError(c, "like post", err)
	}

	likes := int(count)
	return c.JSON(models.LikeResult{Status: status, LikesCount: &likes})
}

// PostImage serves the uploaded image of a post.
func (h *Handlers) PostImage(c *fiber.Ctx) error {
	record, err := h.findPost(c)
	if err != nil {
		return h.postLookupError(c, "post image", err)
	}
	if len(record.ImageData) == 0 {
		return respondWithError(c, fiber.StatusNotFound, "Not found.")
	}
	c.Set(fiber.HeaderContentType, record.ImageType)
	return c.Send(record.ImageData)
}
