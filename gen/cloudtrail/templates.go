package cloudtrail

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/seclog-dev/seclog/gen/catalog"
	"github.com/seclog-dev/seclog/gen/population"
)

// call is everything a template needs to render one record: the actor's
// durable identity plus the session's sticky connection attributes.
type call struct {
	actor     *population.Actor
	region    string
	ip        string
	userAgent string
	eventTime string
	mfa       bool
}

func buildRecord(rng *rand.Rand, name string, c call) *Record {
	rec := baseRecord(rng, name, c)
	switch name {
	case "ConsoleLogin":
		consoleLogin(rec, c)
	case "AssumeRole":
		assumeRole(rng, rec)
	case "GetSessionToken":
		getSessionToken(rng, rec)
	case "PutObject":
		s3Object(rng, rec, "logs", "json", true)
	case "GetObject":
		s3Object(rng, rec, "data", "parquet", false)
	case "DeleteObject":
		s3Object(rng, rec, "tmp", "json", false)
	case "RunInstances":
		runInstances(rng, rec)
	case "StartInstances":
		instanceStateChange(rng, rec, "pending", "stopped")
	case "StopInstances":
		instanceStateChange(rng, rec, "stopping", "running")
	case "PutLogEvents":
		putLogEvents(rng, rec)
	default:
		rec.RequestParameters = map[string]any{}
	}
	return rec
}

func baseRecord(rng *rand.Rand, name string, c call) *Record {
	a := c.actor
	mfa := "false"
	if c.mfa {
		mfa = "true"
	}
	return &Record{
		EventVersion:    "1.08",
		EventTime:       c.eventTime,
		EventSource:     eventSourceFor(name),
		EventName:       name,
		AWSRegion:       c.region,
		SourceIPAddress: c.ip,
		UserAgent:       c.userAgent,
		UserIdentity: UserIdentity{
			Type:        a.IdentityType,
			PrincipalID: a.PrincipalID,
			ARN:         a.ARN,
			AccountID:   a.AccountID,
			AccessKeyID: a.AccessKeyID,
			UserName:    a.UserName,
			SessionContext: &SessionContext{
				Attributes: SessionAttributes{
					CreationDate:     c.eventTime,
					MFAAuthenticated: mfa,
				},
			},
		},
		RequestID:                    randomID(rng),
		EventID:                      randomID(rng),
		ReadOnly:                     readOnlyFor(name),
		EventType:                    eventTypeFor(name),
		ManagementEvent:              true,
		RecipientAccountID:           a.AccountID,
		EventCategory:                "Management",
		TLSDetails:                   tlsDetailsFor(eventSourceFor(name)),
		SessionCredentialFromConsole: a.Kind == population.KindHuman,
	}
}

func consoleLogin(rec *Record, c call) {
	mfaUsed := "No"
	if c.mfa {
		mfaUsed = "Yes"
	}
	rec.RequestParameters = map[string]any{
		"loginTo": "https://console.aws.amazon.com",
		"mfaUsed": mfaUsed,
	}
	rec.ResponseElements = map[string]any{"ConsoleLogin": "Success"}
}

func assumeRole(rng *rand.Rand, rec *Record) {
	roleName := "app-role-" + randomAlpha(rng, 4)
	rec.RequestParameters = map[string]any{
		"roleArn":         fmt.Sprintf("arn:aws:iam::%s:role/%s", rec.RecipientAccountID, roleName),
		"roleSessionName": "session-" + randomAlpha(rng, 8),
	}
	rec.ResponseElements = map[string]any{
		"credentials": map[string]any{
			"accessKeyId": "ASIA" + randomAlpha(rng, 16),
			"expiration":  rec.EventTime,
		},
	}
}

func getSessionToken(rng *rand.Rand, rec *Record) {
	rec.RequestParameters = map[string]any{
		"durationSeconds": 3600,
		"serialNumber":    fmt.Sprintf("arn:aws:iam::%s:mfa/user", rec.RecipientAccountID),
		"tokenCode":       fmt.Sprintf("%06d", rng.Intn(1000000)),
	}
	rec.ResponseElements = map[string]any{
		"credentials": map[string]any{
			"accessKeyId": "ASIA" + randomAlpha(rng, 16),
			"expiration":  rec.EventTime,
		},
	}
}

func s3Object(rng *rand.Rand, rec *Record, prefix, ext string, respond bool) {
	rec.RequestParameters = map[string]any{
		"bucketName": "app-bucket-" + strings.ToLower(randomAlpha(rng, 6)),
		"key":        fmt.Sprintf("%s/%s/%s.%s", prefix, randomAlpha(rng, 4), randomAlpha(rng, 10), ext),
	}
	if respond {
		rec.ResponseElements = map[string]any{"x-amz-request-id": randomAlpha(rng, 16)}
	}
}

func runInstances(rng *rand.Rand, rec *Record) {
	rec.RequestParameters = map[string]any{
		"instanceType": "t3.medium",
		"minCount":     1,
		"maxCount":     1,
	}
	rec.ResponseElements = map[string]any{
		"instancesSet": []any{map[string]any{
			"instanceId": "i-" + strings.ToLower(randomAlpha(rng, 16)),
			"state":      map[string]any{"name": "pending"},
		}},
	}
}

func instanceStateChange(rng *rand.Rand, rec *Record, current, previous string) {
	count := 1 + rng.Intn(2)
	req := make([]any, 0, count)
	resp := make([]any, 0, count)
	for i := 0; i < count; i++ {
		id := "i-" + strings.ToLower(randomAlpha(rng, 16))
		req = append(req, map[string]any{"instanceId": id})
		resp = append(resp, map[string]any{
			"instanceId":    id,
			"currentState":  map[string]any{"name": current},
			"previousState": map[string]any{"name": previous},
		})
	}
	rec.RequestParameters = map[string]any{"instancesSet": map[string]any{"items": req}}
	rec.ResponseElements = map[string]any{"instancesSet": map[string]any{"items": resp}}
}

func putLogEvents(rng *rand.Rand, rec *Record) {
	rec.RequestParameters = map[string]any{
		"logGroupName":  "/app/" + strings.ToLower(randomAlpha(rng, 6)),
		"logStreamName": strings.ToLower(randomAlpha(rng, 12)),
	}
	rec.ResponseElements = map[string]any{"nextSequenceToken": randomAlpha(rng, 32)}
}

// applyError marks the record failed. ConsoleLogin keeps a failure response
// body; every other event drops its response, matching how AWS renders
// denied calls.
func applyError(rec *Record, detail catalog.ErrorDetail) {
	rec.ErrorCode = detail.Code
	rec.ErrorMessage = detail.Message
	if rec.EventName == "ConsoleLogin" {
		rec.ResponseElements = map[string]any{"ConsoleLogin": "Failure"}
	} else {
		rec.ResponseElements = nil
	}
}

func eventSourceFor(name string) string {
	switch name {
	case "ConsoleLogin":
		return "signin.amazonaws.com"
	case "AssumeRole", "GetSessionToken", "GetCallerIdentity":
		return "sts.amazonaws.com"
	case "PutObject", "GetObject", "DeleteObject", "CreateBucket", "DeleteBucket":
		return "s3.amazonaws.com"
	case "RunInstances", "StartInstances", "StopInstances", "TerminateInstances",
		"DescribeInstances", "CreateSecurityGroup", "AuthorizeSecurityGroupIngress":
		return "ec2.amazonaws.com"
	case "CreateUser", "DeleteUser", "CreateAccessKey", "UpdateAccessKey",
		"AttachRolePolicy", "AddUserToGroup", "CreateRole":
		return "iam.amazonaws.com"
	case "CreateLogGroup", "CreateLogStream", "DescribeLogStreams", "PutLogEvents":
		return "logs.amazonaws.com"
	case "Encrypt", "Decrypt", "GenerateDataKey":
		return "kms.amazonaws.com"
	case "PutMetricData", "GetMetricData", "ListMetrics":
		return "monitoring.amazonaws.com"
	default:
		return "unknown.amazonaws.com"
	}
}

func eventTypeFor(name string) string {
	if name == "ConsoleLogin" {
		return "AwsConsoleSignIn"
	}
	return "AwsApiCall"
}

func readOnlyFor(name string) bool {
	switch name {
	case "ConsoleLogin", "GetObject", "DescribeInstances", "GetCallerIdentity",
		"DescribeLogStreams", "GetMetricData", "ListMetrics":
		return true
	default:
		return false
	}
}

func tlsDetailsFor(eventSource string) *TLSDetails {
	return &TLSDetails{
		TLSVersion:               "TLSv1.2",
		CipherSuite:              "ECDHE-RSA-AES128-GCM-SHA256",
		ClientProvidedHostHeader: eventSource,
	}
}

func randomID(rng *rand.Rand) string {
	return uuid.Must(uuid.NewRandomFromReader(rng)).String()
}

const alphaChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlpha(rng *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphaChars[rng.Intn(len(alphaChars))]
	}
	return string(b)
}
