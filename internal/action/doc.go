// Package action performs the actions of fired key maps.
//
// A Registry maps action types to Handlers and implements
// detect.ActionPerformer. The built-in handlers are:
//
//	log      writes Data to the log
//	command  runs Data as a shell command
//	lua      runs Data, or the file named by the "file" argument, as a Lua script
//	key      imitates a press of the key named by Data
//
// Handlers run on the detection loop and should return quickly. The command
// handler starts its process without waiting for it unless the "wait"
// argument is "true".
package action
