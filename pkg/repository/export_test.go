package repository

var CosineDistance = cosineDistance
