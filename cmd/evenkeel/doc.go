// Command evenkeel peak-normalizes the audio of a media library, either as a
// one-shot scan or as a daemon that watches for new files.
package main
