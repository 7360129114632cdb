package commands

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/devcert/cmd/devcert/internal/artifacts"
	"github.com/wolfeidau/devcert/internal/config"
	"github.com/wolfeidau/devcert/internal/container"
	"github.com/wolfeidau/devcert/internal/pki"
	"github.com/wolfeidau/devcert/internal/ssmcerts"
)

// generateBundle runs the generate command into a fresh directory.
func generateBundle(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	var out bytes.Buffer

	cmd := &GenerateCmd{
		IssuerName:  "CN=Test CA",
		SubjectName: "CN=Test Leaf",
		OutputDir:   dir,
	}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))

	return dir, &out
}

type fakeKMS struct {
	key     *rsa.PrivateKey
	signErr error
}

func (f *fakeKMS) GetPublicKey(_ context.Context, _ *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	der, err := x509.MarshalPKIXPublicKey(&f.key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA512, params.Message)
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: sig}, nil
}

type fakeSSM struct {
	params map[string]string
}

func (f *fakeSSM) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	value, ok := f.params[aws.ToString(params.Name)]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(value)}}, nil
}

func TestGenerateCmd_Run(t *testing.T) {
	dir, out := generateBundle(t)

	for _, suffix := range []string{
		artifacts.IssuerCertSuffix,
		artifacts.SubjectCertSuffix,
		artifacts.IssuerContainerSuffix,
		artifacts.SubjectContainerSuffix,
		artifacts.SubjectCertTextSuffix,
	} {
		_, err := os.Stat(filepath.Join(dir, "devcert"+suffix))
		require.NoError(t, err, suffix)
	}

	assert.Contains(t, out.String(), "Generated bundle: devcert\n")
	assert.Contains(t, out.String(), "Container alias:  CN=Test CA\n")
	assert.Contains(t, out.String(), "Subject:             CN=Test Leaf\n")
	assert.NotContains(t, out.String(), "Private Exponent")

	store, err := artifacts.NewStore(dir)
	require.NoError(t, err)

	bundle, err := store.Get("devcert")
	require.NoError(t, err)
	assert.Equal(t, "CN=Test Leaf", bundle.SubjectDN)
	assert.Equal(t, "CN=Test CA", bundle.IssuerDN)
}

func TestGenerateCmd_Duplicate(t *testing.T) {
	dir, _ := generateBundle(t)

	cmd := &GenerateCmd{OutputDir: dir}

	err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	cmd.Force = true
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}}))

	store, err := artifacts.NewStore(dir)
	require.NoError(t, err)

	bundle, err := store.Get("devcert")
	require.NoError(t, err)
	assert.Equal(t, "CN=Unnamed Development Certificate", bundle.SubjectDN)
	assert.Equal(t, "CN=Unnamed Issuer", bundle.IssuerDN)
}

func TestGenerateCmd_ShowKeys(t *testing.T) {
	var out bytes.Buffer

	cmd := &GenerateCmd{OutputDir: t.TempDir(), Name: "keys", ShowKeys: true}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))

	assert.Contains(t, out.String(), "[Issuer]")
	assert.Contains(t, out.String(), "[Subject]")
	assert.Contains(t, out.String(), "Private Exponent:")
}

func TestGenerateCmd_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "certs")

	path := filepath.Join(dir, "devcert.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
issuer_name: "CN=Config CA, O=Acme"
subject_name: "CN=config.local"
validity_days: 7
passphrase: changeit
output_dir: `+outputDir+`
`), 0600))

	cmd := &GenerateCmd{SubjectName: "CN=flag.local"}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Config: path, Stdout: &bytes.Buffer{}}))

	p := container.Packager{Passphrase: "changeit"}
	entry, err := p.OpenFrom(filepath.Join(outputDir, "devcert"+artifacts.SubjectContainerSuffix), "CN=Config CA,O=Acme")
	require.NoError(t, err)

	assert.Equal(t, "CN=flag.local", entry.Certificate.SubjectDN)
	assert.Equal(t, "CN=Config CA,O=Acme", entry.Certificate.IssuerDN)
	assert.Equal(t, 7, int(entry.Certificate.Validity().Hours()/24))

	_, err = container.Packager{}.OpenFrom(filepath.Join(outputDir, "devcert"+artifacts.SubjectContainerSuffix), "CN=Config CA,O=Acme")
	require.ErrorIs(t, err, pki.ErrParse)
}

func TestGenerateCmd_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name string
		cmd  GenerateCmd
	}{
		{name: "key size", cmd: GenerateCmd{KeyBits: 1024}},
		{name: "issuer name", cmd: GenerateCmd{IssuerName: "not a dn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cmd.OutputDir = t.TempDir()

			err := tt.cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
			require.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestViewCmd_Run(t *testing.T) {
	dir, _ := generateBundle(t)

	tests := []struct {
		name    string
		cmd     ViewCmd
		subject string
		key     bool
	}{
		{
			name:    "binary certificate",
			cmd:     ViewCmd{Source: filepath.Join(dir, "devcert"+artifacts.SubjectCertSuffix)},
			subject: "CN=Test Leaf",
		},
		{
			name:    "base64 certificate",
			cmd:     ViewCmd{Source: filepath.Join(dir, "devcert"+artifacts.SubjectCertTextSuffix)},
			subject: "CN=Test Leaf",
		},
		{
			name:    "issuer container",
			cmd:     ViewCmd{Source: filepath.Join(dir, "devcert"+artifacts.IssuerContainerSuffix), Alias: "CN=Test CA"},
			subject: "CN=Test CA",
		},
		{
			name:    "subject container with key",
			cmd:     ViewCmd{Source: filepath.Join(dir, "devcert"+artifacts.SubjectContainerSuffix), Alias: "CN=Test CA", ShowKey: true},
			subject: "CN=Test Leaf",
			key:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer

			require.NoError(t, tt.cmd.Run(context.Background(), &Globals{Stdout: &out}))
			assert.Contains(t, out.String(), "Subject:             "+tt.subject+"\n")
			assert.Contains(t, out.String(), "Signature Algorithm: SHA512withRSA\n")
			assert.Equal(t, tt.key, bytes.Contains(out.Bytes(), []byte("Private Exponent")))
		})
	}
}

func TestViewCmd_Errors(t *testing.T) {
	dir, _ := generateBundle(t)

	t.Run("missing file", func(t *testing.T) {
		cmd := &ViewCmd{Source: filepath.Join(dir, "missing.cer")}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrFileNotFound)
	})

	t.Run("wrong alias", func(t *testing.T) {
		cmd := &ViewCmd{Source: filepath.Join(dir, "devcert"+artifacts.IssuerContainerSuffix), Alias: "CN=Other"}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrNotFound)
	})

	t.Run("malformed input", func(t *testing.T) {
		cmd := &ViewCmd{Source: "not-base64!!"}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrParse)
	})
}

func TestViewCmd_SSMSource(t *testing.T) {
	dir, _ := generateBundle(t)

	text, err := os.ReadFile(filepath.Join(dir, "devcert"+artifacts.SubjectCertTextSuffix))
	require.NoError(t, err)

	original := newSSMClient
	t.Cleanup(func() { newSSMClient = original })
	newSSMClient = func(context.Context, AWSFlags) (ssmcerts.SSMAPI, error) {
		return &fakeSSM{params: map[string]string{"/dev/leaf": string(text)}}, nil
	}

	var out bytes.Buffer
	cmd := &ViewCmd{Source: "ssm:///dev/leaf"}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))
	assert.Contains(t, out.String(), "Subject:             CN=Test Leaf\n")

	cmd = &ViewCmd{Source: "ssm:///dev/missing"}
	err = cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
	require.ErrorIs(t, err, pki.ErrFileNotFound)
}

func TestIssueCmd_FromContainer(t *testing.T) {
	dir, _ := generateBundle(t)

	var out bytes.Buffer
	cmd := &IssueCmd{
		SubjectName: "CN=api.local",
		CAContainer: filepath.Join(dir, "devcert"+artifacts.IssuerContainerSuffix),
		Alias:       "CN=Test CA",
		OutputDir:   dir,
		Name:        "api",
	}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))
	assert.Contains(t, out.String(), "Issued bundle:   api\n")

	issuer := loadCertificate(t, filepath.Join(dir, "devcert"+artifacts.IssuerCertSuffix))
	leaf := loadCertificate(t, filepath.Join(dir, "api"+artifacts.SubjectCertSuffix))

	assert.Equal(t, "CN=api.local", leaf.SubjectDN)
	assert.Equal(t, "CN=Test CA", leaf.IssuerDN)
	require.NoError(t, leaf.CheckSignatureFrom(issuer))

	_, err := os.Stat(filepath.Join(dir, "api"+artifacts.IssuerContainerSuffix))
	assert.ErrorIs(t, err, os.ErrNotExist)

	store, err := artifacts.NewStore(dir)
	require.NoError(t, err)
	bundles, err := store.List()
	require.NoError(t, err)
	assert.Len(t, bundles, 2)
}

func TestIssueCmd_FromKMS(t *testing.T) {
	dir, _ := generateBundle(t)

	entry, err := container.Packager{}.OpenFrom(filepath.Join(dir, "devcert"+artifacts.IssuerContainerSuffix), "CN=Test CA")
	require.NoError(t, err)

	original := newKMSClient
	t.Cleanup(func() { newKMSClient = original })
	newKMSClient = func(context.Context, AWSFlags) (pki.KMSAPI, error) {
		return &fakeKMS{key: entry.KeyPair.PrivateKey()}, nil
	}

	cmd := &IssueCmd{
		SubjectName: "CN=kms.local",
		CACert:      filepath.Join(dir, "devcert"+artifacts.IssuerCertSuffix),
		KMSKeyID:    "alias/dev-root",
		OutputDir:   dir,
	}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}}))

	leaf := loadCertificate(t, filepath.Join(dir, "issued"+artifacts.SubjectCertSuffix))
	assert.Equal(t, "CN=kms.local", leaf.SubjectDN)
	assert.Equal(t, "SHA512withRSA", leaf.SignatureAlgorithm())
	require.NoError(t, leaf.CheckSignatureFrom(entry.Certificate))
}

func TestIssueCmd_ForceKeepsBundleOnFailure(t *testing.T) {
	dir, _ := generateBundle(t)

	entry, err := container.Packager{}.OpenFrom(filepath.Join(dir, "devcert"+artifacts.IssuerContainerSuffix), "CN=Test CA")
	require.NoError(t, err)

	client := &fakeKMS{key: entry.KeyPair.PrivateKey()}

	original := newKMSClient
	t.Cleanup(func() { newKMSClient = original })
	newKMSClient = func(context.Context, AWSFlags) (pki.KMSAPI, error) {
		return client, nil
	}

	cmd := &IssueCmd{
		SubjectName: "CN=kms.local",
		CACert:      filepath.Join(dir, "devcert"+artifacts.IssuerCertSuffix),
		KMSKeyID:    "alias/dev-root",
		OutputDir:   dir,
	}
	require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}}))

	before, err := os.ReadFile(filepath.Join(dir, "issued"+artifacts.SubjectCertSuffix))
	require.NoError(t, err)

	client.signErr = errors.New("kms unavailable")
	cmd.Force = true

	err = cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
	require.ErrorIs(t, err, pki.ErrSigning)

	after, err := os.ReadFile(filepath.Join(dir, "issued"+artifacts.SubjectCertSuffix))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	store, err := artifacts.NewStore(dir)
	require.NoError(t, err)
	_, err = store.Get("issued")
	require.NoError(t, err)
}

func TestIssueCmd_Errors(t *testing.T) {
	dir, _ := generateBundle(t)

	t.Run("no issuer", func(t *testing.T) {
		cmd := &IssueCmd{OutputDir: dir}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrArgument)
	})

	t.Run("certificate without KMS key", func(t *testing.T) {
		cmd := &IssueCmd{OutputDir: dir, CACert: filepath.Join(dir, "devcert"+artifacts.IssuerCertSuffix)}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrArgument)
	})

	t.Run("default alias does not match", func(t *testing.T) {
		cmd := &IssueCmd{OutputDir: dir, CAContainer: filepath.Join(dir, "devcert"+artifacts.IssuerContainerSuffix)}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrNotFound)
	})

	t.Run("missing container", func(t *testing.T) {
		cmd := &IssueCmd{OutputDir: dir, CAContainer: filepath.Join(dir, "missing.p12"), Alias: "CN=Test CA"}
		err := cmd.Run(context.Background(), &Globals{Stdout: &bytes.Buffer{}})
		require.ErrorIs(t, err, pki.ErrFileNotFound)
	})
}

func TestListCmd_Run(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		var out bytes.Buffer
		cmd := &ListCmd{OutputDir: t.TempDir()}
		require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))
		assert.Contains(t, out.String(), "No bundles found.")
	})

	t.Run("lists bundles", func(t *testing.T) {
		dir, _ := generateBundle(t)

		var out bytes.Buffer
		cmd := &ListCmd{OutputDir: dir}
		require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))

		assert.Contains(t, out.String(), "NAME")
		assert.Contains(t, out.String(), "devcert")
		assert.Contains(t, out.String(), "CN=Test Leaf")
		assert.Contains(t, out.String(), "days left")
	})

	t.Run("expired filter", func(t *testing.T) {
		dir, _ := generateBundle(t)

		var out bytes.Buffer
		cmd := &ListCmd{OutputDir: dir, Expired: true}
		require.NoError(t, cmd.Run(context.Background(), &Globals{Stdout: &out}))

		assert.NotContains(t, out.String(), "CN=Test Leaf")
	})
}

func loadCertificate(t *testing.T, path string) *pki.Certificate {
	t.Helper()

	der, err := container.Load(path)
	require.NoError(t, err)

	cert, err := pki.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
