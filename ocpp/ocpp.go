package ocpp

import (
	"encoding/json"
	"reflect"
)

// Request message
type Request interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

// Response message
type Response interface {
	// GetFeatureName Returns the unique name of the feature, to which this request belongs to.
	GetFeatureName() string
}

type Feature interface {
	GetFeatureName() string
	GetRequestType() reflect.Type
	GetResponseType() reflect.Type
}

// Profile groups the features a party is able to decode, indexed by action name
type Profile struct {
	Name     string
	Features map[string]Feature
}

func NewProfile(name string, features ...Feature) *Profile {
	profile := Profile{
		Name:     name,
		Features: make(map[string]Feature),
	}
	for _, feature := range features {
		profile.Features[feature.GetFeatureName()] = feature
	}
	return &profile
}

func (p *Profile) GetFeature(name string) (Feature, bool) {
	feature, ok := p.Features[name]
	return feature, ok
}

func ParseRawJsonRequest(raw json.RawMessage, requestType reflect.Type) (Request, error) {
	value, err := parseRawJson(raw, requestType)
	if err != nil {
		return nil, err
	}
	return value.(Request), nil
}

func ParseRawJsonResponse(raw json.RawMessage, responseType reflect.Type) (Response, error) {
	value, err := parseRawJson(raw, responseType)
	if err != nil {
		return nil, err
	}
	return value.(Response), nil
}

func parseRawJson(raw json.RawMessage, valueType reflect.Type) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	value := reflect.New(valueType).Interface()
	if err := json.Unmarshal(raw, value); err != nil {
		return nil, err
	}
	return value, nil
}
