package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/gorillamux"
	"github.com/gorilla/mux"
)

// serveLambda hands the router to the Lambda runtime. Function URLs and HTTP
// APIs deliver payload format 2.0 events. It blocks for the life of the
// execution environment.
func serveLambda(r *mux.Router) {
	adapter := gorillamux.NewV2(r)
	lambda.Start(adapter.ProxyWithContext)
}
