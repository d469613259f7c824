// Package archive implements the remote archive backends.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pacs2go/internal/pacs"
)

// XNATArchive talks to an XNAT server over its REST API. One instance is
// one authenticated session, identified by the JSESSIONID obtained at
// construction.
type XNATArchive struct {
	baseURL string
	session string
	client  *http.Client
	ids     pacs.IDGenerator
	log     pacs.Logger
}

var _ pacs.Archive = (*XNATArchive)(nil)

// xnat role group labels as the server reports and accepts them.
var xnatRoleGroups = map[string]string{
	pacs.RoleOwner:        "Owners",
	pacs.RoleMember:       "Members",
	pacs.RoleCollaborator: "Collaborators",
}

// NewXNATArchive authenticates against the server and returns a session-
// bound archive. The session token is the response body of the auth call.
func NewXNATArchive(ctx context.Context, baseURL, username, password string, ids pacs.IDGenerator, log pacs.Logger) (*XNATArchive, error) {
	if ids == nil {
		ids = pacs.UUIDGenerator{}
	}
	if log == nil {
		log = pacs.NewNopLogger()
	}
	x := &XNATArchive{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Minute},
		ids:     ids,
		log:     log,
	}

	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		x.baseURL+"/data/services/auth", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authenticating against %s: %w", baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authentication rejected with status %d", resp.StatusCode)
	}
	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading session token: %w", err)
	}
	x.session = strings.TrimSpace(string(token))
	return x, nil
}

// do runs one authenticated request. path segments must already be escaped.
func (x *XNATArchive) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	u := x.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: x.session})
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// checkStatus drains and closes the body on failure. 404 becomes a
// NotFoundError so callers can branch on absence; 403 names the denial.
func checkStatus(resp *http.Response, subject string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusNotFound:
		return &pacs.NotFoundError{Subject: subject}
	case http.StatusForbidden:
		return fmt.Errorf("access to %s denied by the server", subject)
	default:
		return fmt.Errorf("server returned status %d for %s", resp.StatusCode, subject)
	}
}

func (x *XNATArchive) User(ctx context.Context) (string, error) {
	resp, err := x.do(ctx, http.MethodGet, "/xapi/users/username", nil, nil, "")
	if err != nil {
		return "", err
	}
	if err := checkStatus(resp, "session user"); err != nil {
		return "", err
	}
	defer resp.Body.Close()
	name, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading username: %w", err)
	}
	return strings.TrimSpace(string(name)), nil
}

func (x *XNATArchive) Close(ctx context.Context) error {
	resp, err := x.do(ctx, http.MethodDelete, "/data/JSESSION", nil, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("session invalidation returned status %d", resp.StatusCode)
	}
	return nil
}

func projectPath(project string) string {
	return "/data/projects/" + url.PathEscape(project)
}

func resourcePath(project, directory string) string {
	return projectPath(project) + "/resources/" + url.PathEscape(directory)
}

func filePath(project, directory, name string) string {
	return resourcePath(project, directory) + "/files/" + url.PathEscape(name)
}

func (x *XNATArchive) CreateProject(ctx context.Context, project string) error {
	body := fmt.Sprintf(
		`<projectData xmlns="http://nrg.wustl.edu/xnat"><ID>%s</ID><secondary_ID>%s</secondary_ID><name>%s</name></projectData>`,
		project, project, project)
	resp, err := x.do(ctx, http.MethodPost, "/data/projects", nil, strings.NewReader(body), "application/xml")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "project "+project); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (x *XNATArchive) ProjectExists(ctx context.Context, project string) (bool, error) {
	resp, err := x.do(ctx, http.MethodGet, projectPath(project), nil, nil, "")
	if err != nil {
		return false, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("server returned status %d for project %s", resp.StatusCode, project)
	}
}

func (x *XNATArchive) DeleteProject(ctx context.Context, project string) error {
	resp, err := x.do(ctx, http.MethodDelete, projectPath(project), nil, nil, "")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "project "+project); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// CreateDirectory materializes an empty resource. XNAT only creates a
// resource when a file lands in it, so a throwaway file is uploaded and
// deleted again.
func (x *XNATArchive) CreateDirectory(ctx context.Context, project, directory string) error {
	marker := x.ids.New() + ".txt"
	meta := pacs.UploadMetadata{Format: "TXT", ContentType: "text/plain"}
	if err := x.UploadFile(ctx, project, directory, marker, strings.NewReader("x"), meta); err != nil {
		return fmt.Errorf("materializing directory %s: %w", directory, err)
	}
	if err := x.DeleteFile(ctx, project, directory, marker); err != nil {
		return fmt.Errorf("removing directory marker: %w", err)
	}
	return nil
}

func (x *XNATArchive) DirectoryExists(ctx context.Context, project, directory string) (bool, error) {
	labels, err := x.listResources(ctx, project)
	if err != nil {
		return false, err
	}
	for _, l := range labels {
		if l == directory {
			return true, nil
		}
	}
	return false, nil
}

func (x *XNATArchive) DeleteDirectory(ctx context.Context, project, directory string) error {
	resp, err := x.do(ctx, http.MethodDelete, resourcePath(project, directory), nil, nil, "")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "directory "+directory); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// resultSet is the envelope XNAT wraps every JSON listing in.
type resultSet struct {
	ResultSet struct {
		Result []map[string]string `json:"Result"`
	} `json:"ResultSet"`
}

func (x *XNATArchive) listResources(ctx context.Context, project string) ([]string, error) {
	query := url.Values{"format": {"json"}}
	resp, err := x.do(ctx, http.MethodGet, projectPath(project)+"/resources", query, nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, "directories of project "+project); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rs resultSet
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return nil, fmt.Errorf("decoding resource listing: %w", err)
	}
	labels := make([]string, 0, len(rs.ResultSet.Result))
	for _, entry := range rs.ResultSet.Result {
		labels = append(labels, entry["label"])
	}
	return labels, nil
}

func (x *XNATArchive) ListFiles(ctx context.Context, project, directory string) ([]pacs.RemoteFile, error) {
	query := url.Values{"format": {"json"}}
	resp, err := x.do(ctx, http.MethodGet, resourcePath(project, directory)+"/files", query, nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, "directory "+directory); err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rs resultSet
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return nil, fmt.Errorf("decoding file listing: %w", err)
	}
	files := make([]pacs.RemoteFile, 0, len(rs.ResultSet.Result))
	for _, entry := range rs.ResultSet.Result {
		// XNAT reports Size as a string.
		size, _ := strconv.ParseInt(entry["Size"], 10, 64)
		files = append(files, pacs.RemoteFile{
			Name:        entry["Name"],
			Format:      entry["file_format"],
			ContentType: entry["file_content"],
			Tags:        entry["file_tags"],
			Size:        size,
		})
	}
	return files, nil
}

func (x *XNATArchive) UploadFile(ctx context.Context, project, directory, name string, data io.Reader, meta pacs.UploadMetadata) error {
	query := url.Values{
		"format":  {meta.Format},
		"content": {meta.ContentType},
		"tags":    {meta.Tags},
		"inbody":  {"true"},
	}
	resp, err := x.do(ctx, http.MethodPut, filePath(project, directory, name), query, data, "application/octet-stream")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "file "+name); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (x *XNATArchive) DownloadFile(ctx context.Context, project, directory, name string) (io.ReadCloser, error) {
	resp, err := x.do(ctx, http.MethodGet, filePath(project, directory, name), nil, nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, "file "+name); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (x *XNATArchive) DeleteFile(ctx context.Context, project, directory, name string) error {
	resp, err := x.do(ctx, http.MethodDelete, filePath(project, directory, name), nil, nil, "")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "file "+name); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (x *XNATArchive) DownloadDirectoryZip(ctx context.Context, project, directory string) (io.ReadCloser, error) {
	query := url.Values{"format": {"zip"}}
	resp, err := x.do(ctx, http.MethodGet, resourcePath(project, directory)+"/files", query, nil, "")
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, "directory "+directory); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (x *XNATArchive) Roles(ctx context.Context, project string) (pacs.ProjectRoles, error) {
	query := url.Values{"format": {"json"}}
	resp, err := x.do(ctx, http.MethodGet, projectPath(project)+"/users", query, nil, "")
	if err != nil {
		return pacs.ProjectRoles{}, err
	}
	if err := checkStatus(resp, "members of project "+project); err != nil {
		return pacs.ProjectRoles{}, err
	}
	defer resp.Body.Close()

	var rs resultSet
	if err := json.NewDecoder(resp.Body).Decode(&rs); err != nil {
		return pacs.ProjectRoles{}, fmt.Errorf("decoding user listing: %w", err)
	}
	var roles pacs.ProjectRoles
	for _, entry := range rs.ResultSet.Result {
		login := entry["login"]
		switch entry["displayname"] {
		case "Owners":
			roles.Owners = append(roles.Owners, login)
		case "Members":
			roles.Members = append(roles.Members, login)
		case "Collaborators":
			roles.Collaborators = append(roles.Collaborators, login)
		}
	}
	return roles, nil
}

func (x *XNATArchive) GrantRole(ctx context.Context, project, user, level string) error {
	group, ok := xnatRoleGroups[level]
	if !ok {
		return fmt.Errorf("unknown role level %q", level)
	}
	path := projectPath(project) + "/users/" + group + "/" + url.PathEscape(user)
	resp, err := x.do(ctx, http.MethodPut, path, nil, nil, "")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "rights of user "+user); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (x *XNATArchive) RevokeRole(ctx context.Context, project, user string) error {
	roles, err := x.Roles(ctx, project)
	if err != nil {
		return err
	}
	level := roles.RoleOf(user)
	if level == pacs.RoleNone {
		return &pacs.NotFoundError{Subject: "user " + user}
	}
	path := projectPath(project) + "/users/" + xnatRoleGroups[level] + "/" + url.PathEscape(user)
	resp, err := x.do(ctx, http.MethodDelete, path, nil, nil, "")
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "rights of user "+user); err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
