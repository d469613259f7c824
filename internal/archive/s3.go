package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pacs2go/internal/pacs"
)

// S3Archive implements the archive on S3 or S3-compatible storage.
//
// Key layout:
//   - <prefix><project>/.roles.json          role manifest; its presence
//     is what makes the project exist
//   - <prefix><project>/<directory>/.keep    marker that keeps an empty
//     directory visible
//   - <prefix><project>/<directory>/<file>   file bytes, with format and
//     tags in object metadata
//
// Directory names are the full hierarchical unique names, so one project
// level of the bucket stays flat and listable by prefix.
type S3Archive struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	user      string
}

var _ pacs.Archive = (*S3Archive)(nil)

// S3ArchiveConfig contains configuration for the S3 archive backend.
type S3ArchiveConfig struct {
	Bucket    string
	KeyPrefix string
	Region    string
	// Endpoint overrides the AWS endpoint, for S3-compatible storage.
	Endpoint  string
	AccessKey string
	SecretKey string
	// User is reported as the session's username; S3 has no account
	// notion of its own here.
	User string
}

// NewS3Archive builds the client and returns the archive. The bucket must
// already exist.
func NewS3Archive(ctx context.Context, cfg S3ArchiveConfig) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 archive requires a bucket")
	}
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// Path-style is what S3-compatible endpoints expect.
			o.UsePathStyle = true
		}
	})
	user := cfg.User
	if user == "" {
		user = "s3"
	}
	return &S3Archive{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		user:      user,
	}, nil
}

const (
	rolesManifest = ".roles.json"
	keepMarker    = ".keep"
)

func (a *S3Archive) projectKey(project, rest string) string {
	return a.keyPrefix + project + "/" + rest
}

func (a *S3Archive) fileKey(project, directory, name string) string {
	return a.keyPrefix + project + "/" + directory + "/" + name
}

func isNoSuchKey(err error) bool {
	var notFound *types.NoSuchKey
	return errors.As(err, &notFound)
}

func (a *S3Archive) User(ctx context.Context) (string, error) {
	return a.user, nil
}

// Close is a no-op: S3 clients hold no session state.
func (a *S3Archive) Close(ctx context.Context) error { return nil }

// rolesDoc is the stored shape of a project's role manifest.
type rolesDoc struct {
	Owners        []string `json:"owners"`
	Members       []string `json:"members"`
	Collaborators []string `json:"collaborators"`
}

func (a *S3Archive) readRoles(ctx context.Context, project string) (*rolesDoc, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.projectKey(project, rolesManifest)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &pacs.NotFoundError{Subject: "project " + project}
		}
		return nil, fmt.Errorf("reading role manifest of %s: %w", project, err)
	}
	defer out.Body.Close()
	var doc rolesDoc
	if err := json.NewDecoder(out.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding role manifest of %s: %w", project, err)
	}
	return &doc, nil
}

func (a *S3Archive) writeRoles(ctx context.Context, project string, doc *rolesDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding role manifest: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.projectKey(project, rolesManifest)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("writing role manifest of %s: %w", project, err)
	}
	return nil
}

func (a *S3Archive) CreateProject(ctx context.Context, project string) error {
	// The creating user starts as sole owner.
	return a.writeRoles(ctx, project, &rolesDoc{Owners: []string{a.user}})
}

func (a *S3Archive) ProjectExists(ctx context.Context, project string) (bool, error) {
	_, err := a.readRoles(ctx, project)
	if err != nil {
		var nf *pacs.NotFoundError
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *S3Archive) DeleteProject(ctx context.Context, project string) error {
	return a.deletePrefix(ctx, a.keyPrefix+project+"/")
}

// deletePrefix removes every object under the given key prefix.
func (a *S3Archive) deletePrefix(ctx context.Context, prefix string) error {
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing objects under %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(a.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return fmt.Errorf("deleting object %s: %w", aws.ToString(obj.Key), err)
			}
		}
	}
	return nil
}

func (a *S3Archive) CreateDirectory(ctx context.Context, project, directory string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fileKey(project, directory, keepMarker)),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", directory, err)
	}
	return nil
}

func (a *S3Archive) DirectoryExists(ctx context.Context, project, directory string) (bool, error) {
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(a.bucket),
		Prefix:  aws.String(a.fileKey(project, directory, "")),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("checking directory %s: %w", directory, err)
	}
	return len(out.Contents) > 0, nil
}

func (a *S3Archive) DeleteDirectory(ctx context.Context, project, directory string) error {
	return a.deletePrefix(ctx, a.fileKey(project, directory, ""))
}

func (a *S3Archive) ListFiles(ctx context.Context, project, directory string) ([]pacs.RemoteFile, error) {
	exists, err := a.DirectoryExists(ctx, project, directory)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &pacs.NotFoundError{Subject: "directory " + directory}
	}

	prefix := a.fileKey(project, directory, "")
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	var files []pacs.RemoteFile
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing files of %s: %w", directory, err)
		}
		for _, obj := range page.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if name == keepMarker {
				continue
			}
			// Listings carry no user metadata; format and tags come
			// from a per-object head.
			head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(a.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return nil, fmt.Errorf("reading metadata of %s: %w", name, err)
			}
			files = append(files, pacs.RemoteFile{
				Name:        name,
				Format:      head.Metadata["format"],
				ContentType: aws.ToString(head.ContentType),
				Tags:        head.Metadata["tags"],
				Size:        aws.ToInt64(obj.Size),
			})
		}
	}
	return files, nil
}

func (a *S3Archive) UploadFile(ctx context.Context, project, directory, name string, data io.Reader, meta pacs.UploadMetadata) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fileKey(project, directory, name)),
		Body:   data,
		Metadata: map[string]string{
			"format": meta.Format,
			"tags":   meta.Tags,
		},
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}

func (a *S3Archive) DownloadFile(ctx context.Context, project, directory, name string) (io.ReadCloser, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fileKey(project, directory, name)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &pacs.NotFoundError{Subject: "file " + name}
		}
		return nil, fmt.Errorf("downloading %s: %w", name, err)
	}
	return out.Body, nil
}

func (a *S3Archive) DeleteFile(ctx context.Context, project, directory, name string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.fileKey(project, directory, name)),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// DownloadDirectoryZip assembles the zip locally; S3 has no server-side
// packaging.
func (a *S3Archive) DownloadDirectoryZip(ctx context.Context, project, directory string) (io.ReadCloser, error) {
	files, err := a.ListFiles(ctx, project, directory)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	base := directory
	if i := strings.LastIndex(directory, "::"); i >= 0 {
		base = directory[i+2:]
	}
	for _, f := range files {
		w, err := zw.Create(base + "/" + f.Name)
		if err != nil {
			return nil, fmt.Errorf("packing %s: %w", f.Name, err)
		}
		rc, err := a.DownloadFile(ctx, project, directory, f.Name)
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("packing %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finishing zip: %w", err)
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (a *S3Archive) Roles(ctx context.Context, project string) (pacs.ProjectRoles, error) {
	doc, err := a.readRoles(ctx, project)
	if err != nil {
		return pacs.ProjectRoles{}, err
	}
	return pacs.ProjectRoles{
		Owners:        doc.Owners,
		Members:       doc.Members,
		Collaborators: doc.Collaborators,
	}, nil
}

func (a *S3Archive) GrantRole(ctx context.Context, project, user, level string) error {
	doc, err := a.readRoles(ctx, project)
	if err != nil {
		return err
	}
	doc.Owners = remove(doc.Owners, user)
	doc.Members = remove(doc.Members, user)
	doc.Collaborators = remove(doc.Collaborators, user)
	switch level {
	case pacs.RoleOwner:
		doc.Owners = append(doc.Owners, user)
	case pacs.RoleMember:
		doc.Members = append(doc.Members, user)
	case pacs.RoleCollaborator:
		doc.Collaborators = append(doc.Collaborators, user)
	default:
		return fmt.Errorf("unknown role level %q", level)
	}
	return a.writeRoles(ctx, project, doc)
}

func (a *S3Archive) RevokeRole(ctx context.Context, project, user string) error {
	doc, err := a.readRoles(ctx, project)
	if err != nil {
		return err
	}
	doc.Owners = remove(doc.Owners, user)
	doc.Members = remove(doc.Members, user)
	doc.Collaborators = remove(doc.Collaborators, user)
	return a.writeRoles(ctx, project, doc)
}

// remove returns a copy without item. The input may have been handed to
// callers via Roles, so it is never filtered in place.
func remove(list []string, item string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != item {
			out = append(out, v)
		}
	}
	return out
}
