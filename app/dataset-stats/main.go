// Prints per-channel mean and standard deviation of the CIFAR-100 training
// partition, the constants the normalization transforms are built from.
package main

import (
	"flag"
	"fmt"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/tsawler/go-cifar/dataset"
)

var (
	flagData   = flag.String("data", "./data", "Directory to cache the CIFAR-100 binary set, downloaded when missing.")
	flagStride = flag.Int("stride", 1, "Sample every n-th image; 1 uses the full partition.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	trainSet := must.M1(dataset.LoadTrain(*flagData))
	mean, std := dataset.ChannelStats(trainSet, *flagStride)

	fmt.Printf("samples: %d (stride %d)\n", trainSet.Len(), *flagStride)
	fmt.Printf("mean: [%.4f, %.4f, %.4f]\n", mean[0], mean[1], mean[2])
	fmt.Printf("std:  [%.4f, %.4f, %.4f]\n", std[0], std[1], std[2])
}
