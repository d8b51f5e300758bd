// Package github wraps the GitHub REST API behind the few calls the
// analysis pipeline needs.
package github

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"

	"github.com/contrimap/contrimap/internal/retry"
	"github.com/contrimap/contrimap/internal/structure"
)

// RepoInfo is the repository metadata merged into an analysis record.
type RepoInfo struct {
	Name          string
	Description   string
	URL           string
	Stars         int
	Forks         int
	OpenIssues    int
	PrimaryLang   string
	Languages     []string
	Topics        []string
	DefaultBranch string
}

// Issue is the subset of issue fields the API surface and the roadmap
// generator care about.
type Issue struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// MaintainerStats summarizes how quickly maintainers respond, derived from
// recently closed pull requests and issues.
type MaintainerStats struct {
	AvgResponseDays  int    `json:"avgResponseDays"`
	AvgResponseHours int    `json:"avgResponseHours"`
	ActivityLevel    string `json:"activityLevel"`
}

// beginnerLabels are the label strings used to surface starter issues.
var beginnerLabels = []string{
	"good first issue",
	"beginner-friendly",
	"easy",
	"starter",
	"help wanted",
}

// Client talks to the GitHub REST API with retry on transient failures.
type Client struct {
	gh *gh.Client
}

// NewClient builds a client. An empty token gives unauthenticated access
// with GitHub's much lower rate limits, which is still fine for tests.
func NewClient(token string) *Client {
	if token == "" {
		return &Client{gh: gh.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{gh: gh.NewClient(tc)}
}

var repoURLPattern = regexp.MustCompile(`github\.com\/([^\/]+)\/([^\/]+)`)

// ParseRepoURL extracts owner and name from a github.com repository URL.
func ParseRepoURL(url string) (owner, name string, err error) {
	m := repoURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %s", url)
	}
	return m[1], strings.TrimSuffix(m[2], ".git"), nil
}

// GetRepoInfo fetches repository metadata plus the size-ordered language list.
func (c *Client) GetRepoInfo(ctx context.Context, owner, name string) (*RepoInfo, error) {
	var repo *gh.Repository
	err := retry.Do(ctx, func() error {
		var apiErr error
		repo, _, apiErr = c.gh.Repositories.Get(ctx, owner, name)
		return apiErr
	}, retry.WithMaxRetries(3), retry.WithInitialDelay(time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, name, err)
	}

	var langSizes map[string]int
	err = retry.Do(ctx, func() error {
		var apiErr error
		langSizes, _, apiErr = c.gh.Repositories.ListLanguages(ctx, owner, name)
		return apiErr
	}, retry.WithMaxRetries(3), retry.WithInitialDelay(time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetching languages for %s/%s: %w", owner, name, err)
	}

	languages := make([]string, 0, len(langSizes))
	for lang := range langSizes {
		languages = append(languages, lang)
	}
	sort.Slice(languages, func(i, j int) bool {
		if langSizes[languages[i]] != langSizes[languages[j]] {
			return langSizes[languages[i]] > langSizes[languages[j]]
		}
		return languages[i] < languages[j]
	})

	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}

	return &RepoInfo{
		Name:          repo.GetName(),
		Description:   repo.GetDescription(),
		URL:           repo.GetHTMLURL(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		PrimaryLang:   repo.GetLanguage(),
		Languages:     languages,
		Topics:        repo.Topics,
		DefaultBranch: branch,
	}, nil
}

// GetTree fetches the full recursive tree listing for a branch.
func (c *Client) GetTree(ctx context.Context, owner, name, branch string) ([]structure.TreeEntry, error) {
	var tree *gh.Tree
	err := retry.Do(ctx, func() error {
		var apiErr error
		tree, _, apiErr = c.gh.Git.GetTree(ctx, owner, name, branch, true)
		return apiErr
	}, retry.WithMaxRetries(3), retry.WithInitialDelay(time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetching tree for %s/%s@%s: %w", owner, name, branch, err)
	}

	entries := make([]structure.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, structure.TreeEntry{
			Path: e.GetPath(),
			Type: e.GetType(),
			Size: int64(e.GetSize()),
		})
	}
	return entries, nil
}

// GetFileContent fetches a file's decoded content at the given ref.
func (c *Client) GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, name, path,
		&gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", path, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s is not a file", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return content, nil
}

// GetReadme returns the repository README, or empty when absent. A missing
// README is valid, not an error.
func (c *Client) GetReadme(ctx context.Context, owner, name string) (string, error) {
	readme, _, err := c.gh.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return "", nil
	}
	content, err := readme.GetContent()
	if err != nil {
		return "", nil
	}
	return content, nil
}

// contributingPaths are the conventional locations of a contribution guide.
var contributingPaths = []string{
	"CONTRIBUTING.md",
	"CONTRIBUTING",
	".github/CONTRIBUTING.md",
	"docs/CONTRIBUTING.md",
}

// GetContributing returns the first contribution guide found at a
// conventional path, or empty when none exists.
func (c *Client) GetContributing(ctx context.Context, owner, name string) (string, error) {
	for _, path := range contributingPaths {
		content, err := c.GetFileContent(ctx, owner, name, path, "")
		if err == nil && content != "" {
			return content, nil
		}
	}
	return "", nil
}

// GetIssue fetches a single issue by number.
func (c *Client) GetIssue(ctx context.Context, owner, name string, number int) (*Issue, error) {
	var issue *gh.Issue
	err := retry.Do(ctx, func() error {
		var apiErr error
		issue, _, apiErr = c.gh.Issues.Get(ctx, owner, name, number)
		return apiErr
	}, retry.WithMaxRetries(3), retry.WithInitialDelay(time.Second))
	if err != nil {
		return nil, fmt.Errorf("fetching issue #%d: %w", number, err)
	}
	return convertIssue(issue), nil
}

// GetBeginnerIssues lists open issues matching any beginner-oriented label,
// deduplicated by issue ID. Failures for individual labels are tolerated.
func (c *Client) GetBeginnerIssues(ctx context.Context, owner, name string) ([]Issue, error) {
	seen := make(map[int64]bool)
	var issues []Issue

	for _, label := range beginnerLabels {
		opts := &gh.IssueListByRepoOptions{
			State:       "open",
			Labels:      []string{label},
			ListOptions: gh.ListOptions{PerPage: 100},
		}
		list, _, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			continue
		}
		for _, raw := range list {
			if raw.IsPullRequest() || seen[raw.GetID()] {
				continue
			}
			seen[raw.GetID()] = true
			issues = append(issues, *convertIssue(raw))
		}
	}

	if issues == nil {
		issues = []Issue{}
	}
	return issues, nil
}

// responseSampleSize is how many recently closed PRs and issues feed the
// responsiveness average.
const responseSampleSize = 20

// GetMaintainerStats estimates responsiveness from the time-to-close of the
// most recently closed pull requests and issues. Any API failure degrades to
// the moderate default instead of erroring.
func (c *Client) GetMaintainerStats(ctx context.Context, owner, name string) MaintainerStats {
	fallback := MaintainerStats{AvgResponseDays: 3, AvgResponseHours: 72, ActivityLevel: "moderate"}

	var totalHours float64
	var count int

	prs, _, err := c.gh.PullRequests.List(ctx, owner, name, &gh.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: responseSampleSize},
	})
	if err != nil {
		return fallback
	}
	for _, pr := range prs {
		if pr.ClosedAt == nil || pr.CreatedAt == nil {
			continue
		}
		totalHours += pr.ClosedAt.Sub(pr.CreatedAt.Time).Hours()
		count++
	}

	closed, _, err := c.gh.Issues.ListByRepo(ctx, owner, name, &gh.IssueListByRepoOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: responseSampleSize},
	})
	if err != nil {
		return fallback
	}
	for _, issue := range closed {
		if issue.IsPullRequest() || issue.ClosedAt == nil || issue.CreatedAt == nil {
			continue
		}
		totalHours += issue.ClosedAt.Sub(issue.CreatedAt.Time).Hours()
		count++
	}

	if count == 0 {
		return fallback
	}
	return statsFromAvgHours(totalHours / float64(count))
}

// statsFromAvgHours converts an average response time into tiered stats.
func statsFromAvgHours(avgHours float64) MaintainerStats {
	days := int(math.Ceil(avgHours / 24))
	if days < 1 {
		days = 1
	}

	level := "slow"
	switch {
	case days <= 1:
		level = "very-active"
	case days <= 3:
		level = "active"
	case days <= 7:
		level = "moderate"
	}

	return MaintainerStats{
		AvgResponseDays:  days,
		AvgResponseHours: int(avgHours + 0.5),
		ActivityLevel:    level,
	}
}

func convertIssue(raw *gh.Issue) *Issue {
	labels := make([]string, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		labels = append(labels, l.GetName())
	}
	return &Issue{
		ID:        raw.GetID(),
		Number:    raw.GetNumber(),
		Title:     raw.GetTitle(),
		Body:      raw.GetBody(),
		State:     raw.GetState(),
		Labels:    labels,
		URL:       raw.GetHTMLURL(),
		CreatedAt: raw.GetCreatedAt().Time,
	}
}
