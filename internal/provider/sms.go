package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-resty/resty/v2"
)

type gatewaySMSRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// HTTPSMSProvider posts SMS payloads to a JSON gateway endpoint.
type HTTPSMSProvider struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewHTTPSMSProvider(endpoint, apiKey string) (*HTTPSMSProvider, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("sms gateway endpoint is required")
	}

	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return &HTTPSMSProvider{client: client, endpoint: trimmed, apiKey: apiKey}, nil
}

func (p *HTTPSMSProvider) Name() string { return "sms-gateway" }

func (p *HTTPSMSProvider) SendSMS(ctx context.Context, payload SMSPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	req := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(gatewaySMSRequest{To: payload.To, Message: payload.Message})
	if p.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+p.apiKey)
	}

	response, err := req.Post(p.endpoint)
	if err != nil {
		return nil, requestFailedError(err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, statusError(statusCode, strings.TrimSpace(response.String()))
	}

	return &SendResult{Provider: p.Name(), MessageID: headerMessageID(response)}, nil
}

// QuerySMSProvider sends SMS through GET gateways that take the number and
// message as query parameters.
type QuerySMSProvider struct {
	client  *resty.Client
	baseURL string
}

func NewQuerySMSProvider(baseURL string) (*QuerySMSProvider, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("sms gateway base url is required")
	}

	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return &QuerySMSProvider{client: client, baseURL: trimmed}, nil
}

func (p *QuerySMSProvider) Name() string { return "sms-gateway-get" }

func (p *QuerySMSProvider) SendSMS(ctx context.Context, payload SMSPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("phonenumber", payload.To).
		SetQueryParam("message", payload.Message).
		Get(p.baseURL)
	if err != nil {
		return nil, requestFailedError(err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, statusError(statusCode, strings.TrimSpace(response.String()))
	}

	return &SendResult{Provider: p.Name()}, nil
}

type twilioResponse struct {
	SID string `json:"sid"`
}

// TwilioProvider sends SMS through the Twilio Messages API.
type TwilioProvider struct {
	client     *resty.Client
	accountSID string
	authToken  string
	from       string
}

func NewTwilioProvider(accountSID, authToken, from string) (*TwilioProvider, error) {
	if strings.TrimSpace(accountSID) == "" || strings.TrimSpace(authToken) == "" {
		return nil, fmt.Errorf("twilio credentials are required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("twilio sender number is required")
	}

	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return &TwilioProvider{client: client, accountSID: accountSID, authToken: authToken, from: from}, nil
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) SendSMS(ctx context.Context, payload SMSPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", p.accountSID)

	var body twilioResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetBasicAuth(p.accountSID, p.authToken).
		SetFormData(map[string]string{
			"From": p.from,
			"To":   payload.To,
			"Body": payload.Message,
		}).
		SetResult(&body).
		Post(endpoint)
	if err != nil {
		return nil, requestFailedError(err)
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, statusError(statusCode, strings.TrimSpace(response.String()))
	}

	return &SendResult{Provider: p.Name(), MessageID: body.SID}, nil
}

type snsAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSProvider delivers SMS through Amazon SNS direct publish.
type SNSProvider struct {
	client snsAPI
}

func NewSNSProvider(ctx context.Context, region string) (*SNSProvider, error) {
	if strings.TrimSpace(region) == "" {
		return nil, fmt.Errorf("sns region is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &SNSProvider{client: sns.NewFromConfig(cfg)}, nil
}

func (p *SNSProvider) Name() string { return "sns" }

func (p *SNSProvider) SendSMS(ctx context.Context, payload SMSPayload) (*SendResult, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}

	input := &sns.PublishInput{
		Message:     aws.String(payload.Message),
		PhoneNumber: aws.String(payload.To),
	}

	output, err := p.client.Publish(ctx, input)
	if err != nil {
		return nil, &ProviderError{
			Message:   "sns publish failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	result := &SendResult{Provider: p.Name()}
	if output != nil && output.MessageId != nil {
		result.MessageID = *output.MessageId
	}
	return result, nil
}
