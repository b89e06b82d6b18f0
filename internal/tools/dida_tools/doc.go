// Package dida_tools registers the Dida365 task and project tools on an MCP
// server.
//
// Task tools: createTask, getTasks, updateTask, deleteTask.
// Project tools: createProject, getProjects, updateProject, deleteProject.
//
// Every tool answers with a single text result. Failures are returned as MCP
// error results of the form "Error: <message>", never as Go errors. In
// read-only mode only getTasks and getProjects are registered.
package dida_tools
