// Command beatset turns a folder of Beat Saber songs into a training
// dataset, manages the MFCC feature cache the build reads from, and encodes
// model predictions back into playable charts.
package main
