package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"campuscreatives/internal/engagement"
	"campuscreatives/internal/featureflags"
	"campuscreatives/internal/feed"
	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/repository"

	"github.com/spf13/pflag"
)

var errUsage = errors.New("usage")

type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, a *App, args []string) error
}

func commandTable() []command {
	return []command{
		{"login", "<username> [--password p]", "sign in", cmdLogin},
		{"logout", "", "sign out and forget tokens", cmdLogout},
		{"whoami", "", "show the signed-in user", cmdWhoami},
		{"register", "<username> --password p [--email e]", "create an account", cmdRegister},
		{"feed", "[--type t] [--sort s]", "list posts", cmdFeed},
		{"show", "<post-id>", "show a post and its comments", cmdShow},
		{"create", "--title t --content c [--type t] [--tags a,b] [--image file]", "create a post", cmdCreate},
		{"edit", "<post-id> [--title t] [--content c] [--type t] [--tags a,b]", "edit a post", cmdEdit},
		{"delete", "<post-id>", "delete a post", cmdDelete},
		{"like", "<post-id>", "like or unlike a post", cmdLike},
		{"comments", "<post-id> [--fresh]", "list comments", cmdComments},
		{"comment", "<post-id> <text>", "add a comment", cmdComment},
		{"delete-comment", "<post-id> <comment-id>", "delete a comment", cmdDeleteComment},
		{"profile", "[--bio b] [--student-id s]", "show or update your profile", cmdProfile},
		{"stats", "", "your posting dashboard", cmdStats},
		{"categories", "", "posts per category and popular tags", cmdCategories},
		{"sync", "", "send posts saved offline", cmdSync},
	}
}

// Run dispatches args[0] to its command.
func Run(ctx context.Context, a *App, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return nil
	}
	if u := a.session.CurrentUser(ctx); u != nil {
		ctx = observability.WithUsername(ctx, u.Username)
	}
	for _, c := range commandTable() {
		if c.name == args[0] {
			err := c.run(ctx, a, args[1:])
			if errors.Is(err, errUsage) {
				a.printf("usage: campus %s %s\n", c.name, c.args)
			}
			return err
		}
	}
	a.usage()
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func (a *App) usage() {
	a.printf("usage: campus <command> [arguments]\n\ncommands:\n")
	for _, c := range commandTable() {
		a.printf("  %-15s %s\n", c.name, c.summary)
	}
}

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func needArgs(fs *pflag.FlagSet, n int) ([]string, error) {
	if fs.NArg() < n {
		return nil, errUsage
	}
	return fs.Args(), nil
}

func cmdLogin(ctx context.Context, a *App, args []string) error {
	fs := newFlags("login")
	password := fs.StringP("password", "p", "", "password (prompted when empty)")
	if err := parse(fs, args); err != nil {
		return err
	}
	rest, err := needArgs(fs, 1)
	if err != nil {
		return err
	}
	username := rest[0]
	if *password == "" {
		*password = a.prompt("Password: ")
	}

	user, err := a.session.Login(ctx, username, *password)
	if err == nil {
		a.printf("Signed in as %s (%s).\n", user.DisplayName(), user.Role)
		return nil
	}
	if !models.IsCode(err, models.CodeNetworkUnavailable) || !a.flags.Enabled(featureflags.GuestMode, username) {
		return err
	}

	a.printf("! %s\n", describeError(err))
	answer := strings.ToLower(a.prompt("Continue as guest? [y/N] "))
	if answer != "y" && answer != "yes" {
		return err
	}
	guest, gerr := a.session.LoginAsGuest(ctx, username)
	if gerr != nil {
		return gerr
	}
	a.printf("Browsing as guest %s. Posting, liking and commenting need a real login.\n", guest.Username)
	return nil
}

func cmdLogout(ctx context.Context, a *App, _ []string) error {
	return a.session.Logout(ctx)
}

func cmdWhoami(ctx context.Context, a *App, _ []string) error {
	if !a.session.IsLoggedIn(ctx) {
		a.printf("Not signed in.\n")
		return nil
	}
	user := a.session.CurrentUser(ctx)
	if user == nil {
		return models.NewInternalError(errors.New("stored user record is unreadable"))
	}
	a.printf("%s (%s)\n", user.DisplayName(), user.Role)
	if user.Email != "" {
		a.printf("Email: %s\n", user.Email)
	}
	if user.StudentID != "" {
		a.printf("Student ID: %s\n", user.StudentID)
	}
	a.printf("Authenticated: %t\n", a.session.IsAuthenticated(ctx))
	settings := a.flags.Raw()
	for _, st := range a.flags.Snapshot(user.Username) {
		a.printf("Feature %s: %t (%s)\n", st.Name, st.Enabled, settings[st.Name])
	}
	return nil
}

func cmdRegister(ctx context.Context, a *App, args []string) error {
	fs := newFlags("register")
	email := fs.String("email", "", "email address")
	password := fs.StringP("password", "p", "", "password, at least 8 characters")
	if err := parse(fs, args); err != nil {
		return err
	}
	rest, err := needArgs(fs, 1)
	if err != nil {
		return err
	}
	if *password == "" {
		*password = a.prompt("Password: ")
	}
	if err := a.session.Register(ctx, rest[0], *email, *password); err != nil {
		return err
	}
	a.printf("Account %s created. Run `campus login %s` to sign in.\n", rest[0], rest[0])
	return nil
}

// loadFeed returns queued offline posts followed by the server's posts.
func (a *App) loadFeed(ctx context.Context) ([]models.Post, repository.Source, error) {
	posts, src, err := a.posts.ListPosts(ctx)
	if err != nil {
		return nil, src, err
	}
	queued, err := a.posts.OfflinePosts(ctx)
	if err != nil {
		return nil, src, err
	}
	return append(queued, posts...), src, nil
}

func cmdFeed(ctx context.Context, a *App, args []string) error {
	fs := newFlags("feed")
	postType := fs.String("type", models.FilterAll, "post type: all, art, writing, photography, music, other")
	sortKey := fs.String("sort", string(models.SortNewest), "newest, oldest, most_liked, most_commented")
	if err := parse(fs, args); err != nil {
		return err
	}
	filter, err := models.ParseFilter(*postType, *sortKey)
	if err != nil {
		return err
	}

	posts, src, err := a.loadFeed(ctx)
	if err != nil {
		return err
	}
	a.banner(src)
	a.printf("%s\n", filter.Label())

	views := a.likes.Reconcile(ctx, feed.Project(posts, filter))
	if len(views) == 0 {
		a.printf("No posts yet.\n")
		return nil
	}
	for _, v := range views {
		a.printf("%s\n", postLine(v))
	}
	return nil
}

func (a *App) view(ctx context.Context, p *models.Post) engagement.PostView {
	return engagement.PostView{Post: *p, Liked: a.likes.IsLiked(ctx, p.ID)}
}

func cmdShow(ctx context.Context, a *App, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	post, err := a.posts.GetPost(ctx, models.PostID(args[0]))
	if err != nil {
		return err
	}
	a.printPost(a.view(ctx, post))
	if post.Offline {
		return nil
	}

	comments, src, err := a.posts.ListComments(ctx, post.ID, false)
	if err != nil {
		return err
	}
	a.printf("\nComments:\n")
	a.banner(src)
	a.printComments(comments)
	return nil
}

type postFlags struct {
	title, content, postType, tags *string
}

func addPostFlags(fs *pflag.FlagSet, defaultType string) postFlags {
	return postFlags{
		title:    fs.String("title", "", "post title"),
		content:  fs.String("content", "", "post body"),
		postType: fs.String("type", defaultType, "art, writing, photography, music or other"),
		tags:     fs.String("tags", "", "comma-separated tags"),
	}
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return models.NormalizeTags(strings.Split(raw, ","))
}

func readUpload(path string) (*models.Upload, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewValidationError(fmt.Sprintf("cannot read image: %v", err))
	}
	return &models.Upload{Filename: filepath.Base(path), Data: data}, nil
}

func cmdCreate(ctx context.Context, a *App, args []string) error {
	fs := newFlags("create")
	pf := addPostFlags(fs, string(models.PostTypeWriting))
	imagePath := fs.String("image", "", "image file to attach")
	if err := parse(fs, args); err != nil {
		return err
	}
	upload, err := readUpload(*imagePath)
	if err != nil {
		return err
	}

	in := models.PostInput{
		Title:    *pf.title,
		Content:  *pf.content,
		PostType: models.PostType(*pf.postType),
		Tags:     splitTags(*pf.tags),
	}
	post, src, err := a.posts.CreatePost(ctx, in, upload)
	if err != nil && !models.IsDegraded(err) {
		return err
	}
	if src == repository.SourceOffline {
		a.printf("! Saved offline as %s. Run `campus sync` once the server is reachable.\n", post.ID)
		if upload != nil {
			a.printf("! The image was not kept; attach it again after syncing.\n")
		}
		return nil
	}
	a.printf("Created post %s.\n", post.ID)
	return nil
}

func cmdEdit(ctx context.Context, a *App, args []string) error {
	fs := newFlags("edit")
	pf := addPostFlags(fs, "")
	if err := parse(fs, args); err != nil {
		return err
	}
	rest, err := needArgs(fs, 1)
	if err != nil {
		return err
	}
	post, err := a.posts.GetPost(ctx, models.PostID(rest[0]))
	if err != nil {
		return err
	}

	in := models.PostInput{Title: post.Title, Content: post.Content, PostType: post.PostType, Tags: post.Tags}
	if fs.Changed("title") {
		in.Title = *pf.title
	}
	if fs.Changed("content") {
		in.Content = *pf.content
	}
	if fs.Changed("type") {
		in.PostType = models.PostType(*pf.postType)
	}
	if fs.Changed("tags") {
		in.Tags = splitTags(*pf.tags)
	}

	updated, err := a.posts.UpdatePost(ctx, post, in)
	if err != nil {
		return err
	}
	a.printf("Updated post %s.\n", updated.ID)
	return nil
}

func cmdDelete(ctx context.Context, a *App, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	post, err := a.posts.GetPost(ctx, models.PostID(args[0]))
	if err != nil {
		return err
	}
	if err := a.posts.DeletePost(ctx, post); err != nil {
		return err
	}
	if err := a.likes.SetLiked(ctx, post.ID, false); err != nil {
		return err
	}
	a.printf("Deleted post %s.\n", post.ID)
	return nil
}

func cmdLike(ctx context.Context, a *App, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	post, err := a.posts.GetPost(ctx, models.PostID(args[0]))
	if err != nil {
		return err
	}
	v, err := a.likes.ToggleLike(ctx, *post)
	if err != nil {
		return err
	}
	verb := "Unliked"
	if v.Liked {
		verb = "Liked"
	}
	a.printf("%s %q. %d likes.\n", verb, v.Title, v.LikesCount)
	return nil
}

func cmdComments(ctx context.Context, a *App, args []string) error {
	fs := newFlags("comments")
	fresh := fs.Bool("fresh", false, "bypass the comment cache")
	if err := parse(fs, args); err != nil {
		return err
	}
	rest, err := needArgs(fs, 1)
	if err != nil {
		return err
	}
	comments, src, err := a.posts.ListComments(ctx, models.PostID(rest[0]), *fresh)
	if err != nil {
		return err
	}
	a.banner(src)
	a.printComments(comments)
	return nil
}

func cmdComment(ctx context.Context, a *App, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	c, err := a.posts.AddComment(ctx, models.PostID(args[0]), strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	a.printf("Comment %s added.\n", c.ID)
	return nil
}

func cmdDeleteComment(ctx context.Context, a *App, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	if err := a.posts.DeleteComment(ctx, models.PostID(args[0]), models.PostID(args[1])); err != nil {
		return err
	}
	a.printf("Comment %s deleted.\n", args[1])
	return nil
}

func cmdProfile(ctx context.Context, a *App, args []string) error {
	fs := newFlags("profile")
	bio := fs.String("bio", "", "new bio")
	studentID := fs.String("student-id", "", "new student id")
	if err := parse(fs, args); err != nil {
		return err
	}

	var p *models.Profile
	var err error
	if fs.Changed("bio") || fs.Changed("student-id") {
		var in models.ProfileUpdate
		if fs.Changed("bio") {
			in.Bio = bio
		}
		if fs.Changed("student-id") {
			in.StudentID = studentID
		}
		p, err = a.profiles.Update(ctx, in)
	} else {
		p, err = a.profiles.Get(ctx)
	}
	if err != nil {
		return err
	}

	a.printf("%s <%s>\n", p.Username, p.Email)
	a.printf("Student ID: %s\n", p.StudentID)
	a.printf("Verified: %t\n", p.IsVerified)
	if p.Bio != "" {
		a.printf("Bio: %s\n", p.Bio)
	}
	return nil
}

func cmdStats(ctx context.Context, a *App, _ []string) error {
	user := a.session.CurrentUser(ctx)
	if user == nil {
		return models.NewUnauthenticatedError("Sign in to see your dashboard")
	}
	posts, src, err := a.loadFeed(ctx)
	if err != nil {
		return err
	}
	a.banner(src)

	s := feed.UserStats(posts, user.Username, a.now())
	a.printf("Dashboard for %s\n", user.DisplayName())
	a.printf("Posts: %d  Likes: %d  Comments: %d\n", s.TotalPosts, s.TotalLikes, s.TotalComments)
	a.printf("Average engagement: %.1f (%s)\n", s.AvgEngagement, s.Level)
	a.printf("Posts this week: %d\n", s.RecentPosts)
	for _, t := range models.PostTypes {
		if n := s.PostsByType[t]; n > 0 {
			a.printf("  %-12s %d\n", t.Label(), n)
		}
	}
	if s.MostPopular != nil {
		a.printf("Most popular: %q with %d likes\n", s.MostPopular.Title, s.MostPopular.LikesCount)
	}
	return nil
}

func cmdCategories(ctx context.Context, a *App, _ []string) error {
	posts, src, err := a.loadFeed(ctx)
	if err != nil {
		return err
	}
	a.banner(src)

	stats := feed.CategoryStats(posts)
	for _, t := range models.PostTypes {
		s := stats[t]
		a.printf("%-12s posts:%d likes:%d comments:%d", t.Label(), s.Count, s.Likes, s.Comments)
		if len(s.Authors) > 0 {
			a.printf("  by %s", strings.Join(s.Authors, ", "))
		}
		a.printf("\n")
	}

	tags := feed.PopularTags(posts, 10)
	if len(tags) == 0 {
		return nil
	}
	parts := make([]string, 0, len(tags))
	for _, tc := range tags {
		parts = append(parts, fmt.Sprintf("#%s (%d)", tc.Tag, tc.Count))
	}
	a.printf("Popular tags: %s\n", strings.Join(parts, " "))
	return nil
}

func cmdSync(ctx context.Context, a *App, _ []string) error {
	res, err := a.posts.SyncOffline(ctx)
	for _, p := range res.Synced {
		a.printf("Sent %q as post %s.\n", p.Title, p.ID)
	}
	if err != nil {
		return err
	}
	a.printf("%d sent, %d still queued.\n", len(res.Synced), res.Pending)
	return nil
}
