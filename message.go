package main

const (
	MsgRunning = "MNIST Serverless API is running!"

	MsgPredictionFailed = "Prediction failed"

	MsgInvalidRequest = "Request body must be JSON with a base64 \"image\" field"

	MsgBusy = "All model sessions are busy, retry shortly"

	MsgNotFound         = "Not found"
	MsgMethodNotAllowed = "Method not allowed"
)
