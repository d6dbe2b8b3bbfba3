package relay

import "github.com/stretchr/testify/mock"

// MatchPublishRequest creates a custom matcher for publish requests in mocks
func MatchPublishRequest(matcher func(PublishRequest) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchDeadLetter creates a custom matcher for dead letters in mocks
func MatchDeadLetter(matcher func(DeadLetter) bool) interface{} {
	return mock.MatchedBy(matcher)
}
